// Package recognition gates which connected devices are safe to flash.
package recognition

// expectedSlotCount is the only slot topology the flasher knows how to
// drive: a dual-slot A/B layout.
const expectedSlotCount = 2

// expectedPartitions is the fixed partition table of supported devices.
// A device may report a subset of these (some SKUs omit radio or DSP
// partitions); anything outside the list means unknown hardware.
var expectedPartitions = map[string]struct{}{
	"boot_a": {}, "boot_b": {},
	"bootloader_a": {}, "bootloader_b": {},
	"dtbo_a": {}, "dtbo_b": {},
	"vbmeta_a": {}, "vbmeta_b": {},
	"system_a": {}, "system_b": {},
	"vendor_a": {}, "vendor_b": {},
	"product_a": {}, "product_b": {},
	"radio_a": {}, "radio_b": {},
	"modem_a": {}, "modem_b": {},
	"abl_a": {}, "abl_b": {},
	"xbl_a": {}, "xbl_b": {},
	"tz_a": {}, "tz_b": {},
	"hyp_a": {}, "hyp_b": {},
	"keymaster_a": {}, "keymaster_b": {},
	"cmnlib_a": {}, "cmnlib_b": {},
	"cmnlib64_a": {}, "cmnlib64_b": {},
	"devcfg_a": {}, "devcfg_b": {},
	"dsp_a": {}, "dsp_b": {},
	"aop_a": {}, "aop_b": {},
	"bluetooth_a": {}, "bluetooth_b": {},
	"qupfw_a": {}, "qupfw_b": {},
	"uefisecapp_a": {}, "uefisecapp_b": {},
	"userdata": {}, "metadata": {},
	"misc": {}, "persist": {},
	"frp": {}, "devinfo": {},
	"ssd": {}, "splash": {},
	"ddr": {}, "logdump": {},
}

// Validate reports whether a device with the given slot count and reported
// partition names is recognized. The partition check is one-directional:
// every reported name must be expected, but the device is not required to
// report the full table. Evaluated once per connection attempt; there is
// no retry.
func Validate(slotCount int, partitions []string) bool {
	if slotCount != expectedSlotCount {
		return false
	}
	for _, name := range partitions {
		if _, ok := expectedPartitions[name]; !ok {
			return false
		}
	}
	return true
}
