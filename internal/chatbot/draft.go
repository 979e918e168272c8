package chatbot

// Draft accumulates the appointment fields collected so far.
// An empty string means the field has not been collected.
type Draft struct {
	Owner        string `json:"owner,omitempty"`
	OwnerID      string `json:"ownerId,omitempty"`
	Pet          string `json:"pet,omitempty"`
	Date         string `json:"date,omitempty"`
	Time         string `json:"time,omitempty"`
	Service      string `json:"service,omitempty"`
	ServiceLabel string `json:"serviceLabel,omitempty"`
}

// Fields lists the collected field names in collection order.
func (d Draft) Fields() []string {
	var out []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"owner", d.Owner},
		{"ownerId", d.OwnerID},
		{"pet", d.Pet},
		{"date", d.Date},
		{"time", d.Time},
		{"service", d.Service},
		{"serviceLabel", d.ServiceLabel},
	} {
		if f.value != "" {
			out = append(out, f.name)
		}
	}
	return out
}

func (d Draft) IsEmpty() bool {
	return d == Draft{}
}
