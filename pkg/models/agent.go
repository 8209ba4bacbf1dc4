package models

// Agent is an entry in the external agent registry.
type Agent struct {
	// ID is the only field the engine relies on.
	ID string `json:"id"`
	// Name is a display name, if the registry provides one.
	Name string `json:"name,omitempty"`
}
