// Package icons holds the presentation registries the catalog references by
// plain string key. Nothing here feeds back into domain correctness; unknown
// keys resolve to defaults at render time and are never persisted as-is.
package icons

// DefaultIcon is the sentinel used when a section carries no known icon name.
const DefaultIcon = "FolderOpen"

var registry = map[string]struct{}{
	"Briefcase":     {},
	"Calendar":      {},
	"ChevronDown":   {},
	"ChevronUp":     {},
	"Code":          {},
	"DollarSign":    {},
	"Edit3":         {},
	"ExternalLink":  {},
	"FileText":      {},
	"FlaskConical":  {},
	"FolderOpen":    {},
	"Gift":          {},
	"Globe":         {},
	"Home":          {},
	"ImageIcon":     {},
	"Info":          {},
	"LogOut":        {},
	"Mail":          {},
	"Map":           {},
	"MessageCircle": {},
	"Music":         {},
	"Phone":         {},
	"PieChart":      {},
	"Plus":          {},
	"Search":        {},
	"Settings":      {},
	"ShieldCheck":   {},
	"ShoppingCart":  {},
	"Star":          {},
	"Tag":           {},
	"Terminal":      {},
	"Truck":         {},
	"UserCog":       {},
	"Users":         {},
	"Video":         {},
	"Zap":           {},
}

// Resolve maps a stored icon name to a known registry key, falling back to
// the default sentinel for absent or unknown names.
func Resolve(name string) string {
	if _, ok := registry[name]; ok {
		return name
	}
	return DefaultIcon
}

// Known reports whether the name is a registry key.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// ColorOption pairs a display name with the style tag stored on sections.
type ColorOption struct {
	Name  string
	Value string
}

var palette = []ColorOption{
	{Name: "Blue", Value: "bg-blue-50 border-blue-200 hover:bg-blue-100"},
	{Name: "Purple", Value: "bg-purple-50 border-purple-200 hover:bg-purple-100"},
	{Name: "Green", Value: "bg-green-50 border-green-200 hover:bg-green-100"},
	{Name: "Yellow", Value: "bg-yellow-50 border-yellow-200 hover:bg-yellow-100"},
	{Name: "Orange", Value: "bg-orange-50 border-orange-200 hover:bg-orange-100"},
	{Name: "Red", Value: "bg-red-50 border-red-200 hover:bg-red-100"},
	{Name: "Gray", Value: "bg-gray-50 border-gray-200 hover:bg-gray-100"},
	{Name: "Indigo", Value: "bg-indigo-50 border-indigo-200 hover:bg-indigo-100"},
}

// DefaultColor is the style tag applied when a section carries none.
func DefaultColor() string {
	return "bg-gray-50 border-gray-200 hover:bg-gray-100"
}

// Palette returns the selectable color options in display order.
func Palette() []ColorOption {
	options := make([]ColorOption, len(palette))
	copy(options, palette)
	return options
}
