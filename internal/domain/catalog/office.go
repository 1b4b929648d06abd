package catalog

// Office is a Krishi Bhavan collection point. Offices are static reference data.
type Office struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location" json:"location"`
	Address  string `yaml:"address" json:"address"`
	Contact  string `yaml:"contact" json:"contact"`
	Email    string `yaml:"email" json:"email,omitempty"`
}
