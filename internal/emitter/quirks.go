// Package emitter implements the IR emitter controller (C2): vendor
// quirk resolution and UVC extension-unit activation around capture
// windows.
package emitter

// Quirk is a compile-time record keyed by (VendorID, ProductID)
// describing how to address a camera's IR-illumination extension unit.
type Quirk struct {
	VendorID  uint16
	ProductID uint16
	Name      string
	Unit      uint8
	Selector  uint8
	Payload   []byte // activation payload; deactivation is the zero-filled payload of the same length
}

// quirkTable is embedded at build time; no runtime file scanning in v1
// (see design notes — a runtime override directory is a forward-looking
// hook, not implemented here). Entries below are drawn from cameras
// commonly paired with Linux IR face-auth setups.
var quirkTable = []Quirk{
	{
		VendorID:  0x04f2, // Chicony
		ProductID: 0xb604,
		Name:      "Chicony USB2.0 IR Camera",
		Unit:      0x04,
		Selector:  0x02,
		Payload:   []byte{0x01, 0x00, 0x00, 0x00},
	},
	{
		VendorID:  0x04f2,
		ProductID: 0xb5db,
		Name:      "Chicony Integrated IR Camera",
		Unit:      0x04,
		Selector:  0x02,
		Payload:   []byte{0x01, 0x00, 0x00, 0x00},
	},
	{
		VendorID:  0x13d3, // IMC Networks
		ProductID: 0x5a11,
		Name:      "IMC Networks IR Camera",
		Unit:      0x03,
		Selector:  0x06,
		Payload:   []byte{0x01, 0x00},
	},
	{
		VendorID:  0x0bda, // Realtek
		ProductID: 0x5658,
		Name:      "Realtek IR Camera",
		Unit:      0x05,
		Selector:  0x03,
		Payload:   []byte{0x01},
	},
	{
		VendorID:  0x2386, // Raydium
		ProductID: 0x3822,
		Name:      "Raydium IR Camera",
		Unit:      0x02,
		Selector:  0x02,
		Payload:   []byte{0x01, 0x00, 0x00},
	},
}

// lookupQuirk finds the quirk entry for a vendor/product pair, if any.
func lookupQuirk(vendorID, productID uint16) (Quirk, bool) {
	for _, q := range quirkTable {
		if q.VendorID == vendorID && q.ProductID == productID {
			return q, true
		}
	}
	return Quirk{}, false
}
