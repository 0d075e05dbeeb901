package checksum

import (
	"testing"
)

// Additional fuzz tests for checksum package.
// Note: FuzzCRC32CRoundtrip and FuzzCRC32CExtend are in crc32c_test.go

// FuzzMaskUnmaskRoundtrip fuzzes the mask/unmask functions.
func FuzzMaskUnmaskRoundtrip(f *testing.F) {
	f.Add([]byte{0})
	f.Add([]byte{1, 2, 3, 4})
	f.Add([]byte("test data for CRC"))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) == 0 {
			return
		}

		// Compute masked CRC
		masked := MaskedExtend(0, data)
		unmasked := Unmask(masked)

		// Verify unmasked gives us back the raw CRC
		rawCRC := Extend(0, data)
		if unmasked != rawCRC {
			t.Errorf("Mask/Unmask roundtrip failed: masked=%x, unmasked=%x, raw=%x",
				masked, unmasked, rawCRC)
		}
	})
}
