package reference

// Directory — один именованный справочник допустимых значений для select-полей.
type Directory struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

type Item struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Order int    `yaml:"order,omitempty"`
}

// Codes возвращает коды справочника в порядке объявления.
func (d Directory) Codes() []string {
	out := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		out = append(out, it.Code)
	}
	return out
}
