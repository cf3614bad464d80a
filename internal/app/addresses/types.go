package addresses

// Input carries the editable fields of an address. All are required.
type Input struct {
	Title       string
	Country     string
	FullAddress string
	PostalCode  string
}

type ListParams struct {
	Search string
}

type fields struct {
	Title       string `json:"title" validate:"required,max=100"`
	Country     string `json:"country" validate:"required,max=100"`
	FullAddress string `json:"fullAddress" validate:"required,max=500"`
	PostalCode  string `json:"postalCode" validate:"required,max=20"`
}
