package domain

// JobRequest is the payload submitted to create a generation job. It
// describes what the pipeline should produce: each entry in ProductTypes
// yields one generated design published as a product of that type.
type JobRequest struct {
	ProductTypes []string `json:"productTypes" validate:"required,min=1,dive,required"`
	Prompt       string   `json:"prompt,omitempty"`
	Title        string   `json:"title,omitempty"`
}
