package camera

// DefaultRewrites maps EXIF model strings that are internal codenames or
// terse sensor identifiers to the marketing name an operator actually
// recognizes in the UI and sidecar. A non-nil rewrites map passed to New
// replaces this table; the two are not merged.
var DefaultRewrites = map[string]string{
	"ILCE-7M3":  "Sony A7 III",
	"ILCE-7M4":  "Sony A7 IV",
	"ILCE-7SM3": "Sony A7S III",
	"ILCE-7C":   "Sony A7C",
	"C2120":     "Canon EOS R5",
	"Canon EOS R5 (C2120)": "Canon EOS R5",
	"DC-S5M2":   "Panasonic Lumix S5 II",
	"DC-GH6":    "Panasonic Lumix GH6",
}
