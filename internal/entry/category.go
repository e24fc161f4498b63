package entry

// Category groups entries. Order drives deterministic category listings.
type Category struct {
	ID          string            `json:"id" yaml:"id"`
	Name        map[string]string `json:"name" yaml:"name"`
	Description map[string]string `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string            `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color       string            `json:"color,omitempty" yaml:"color,omitempty"`
	Order       int               `json:"order" yaml:"order"`
}

// LocalizedName returns the category name in locale, falling back to the ID.
func (c *Category) LocalizedName(locale string) string {
	if name := c.Name[locale]; name != "" {
		return name
	}
	return c.ID
}
