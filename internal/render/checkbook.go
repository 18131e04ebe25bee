package render

// CheckSize is the physical leaf size in millimetres
type CheckSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var (
	sizeIndividual = CheckSize{Width: 150, Height: 70}
	sizeCorporate  = CheckSize{Width: 180, Height: 80}
)

// CheckLeaf is the print-ready data for one check in a book
type CheckLeaf struct {
	CheckNumber   int       `json:"checkNumber"`
	SerialNumber  string    `json:"serialNumber"`
	RoutingNumber string    `json:"routingNumber"`
	AccountNumber string    `json:"accountNumber"`
	HolderName    string    `json:"holderName"`
	BranchName    string    `json:"branchName"`
	Size          CheckSize `json:"size"`
	MICRLine      string    `json:"micrLine"`
	MICRDisplay   string    `json:"micrDisplay"`
}

// CheckbookData is the full print-ready checkbook
type CheckbookData struct {
	Reference     string      `json:"reference"`
	BranchName    string      `json:"branchName"`
	HolderName    string      `json:"holderName"`
	AccountNumber string      `json:"accountNumber"`
	RoutingNumber string      `json:"routingNumber"`
	FirstSerial   int         `json:"firstSerial"`
	LastSerial    int         `json:"lastSerial"`
	Checks        []CheckLeaf `json:"checks"`
}

// CheckbookInput describes one committed serial range to render
type CheckbookInput struct {
	Reference     string
	AccountNumber string
	HolderName    string
	AccountType   int
	BranchName    string
	RoutingNumber string
	FirstSerial   int
	LastSerial    int
}

// BuildCheckbook expands a committed serial range into per-leaf check
// data. It performs no I/O and never fails; range validity was settled
// by the allocation transaction.
func BuildCheckbook(in CheckbookInput) *CheckbookData {
	size := sizeIndividual
	if in.AccountType != 1 {
		size = sizeCorporate
	}

	checks := make([]CheckLeaf, 0, in.LastSerial-in.FirstSerial+1)
	for serial := in.FirstSerial; serial <= in.LastSerial; serial++ {
		raw := MICRLine(serial, in.AccountNumber, in.RoutingNumber, in.AccountType)
		checks = append(checks, CheckLeaf{
			CheckNumber:   serial - in.FirstSerial + 1,
			SerialNumber:  FormatSerial(serial),
			RoutingNumber: in.RoutingNumber,
			AccountNumber: in.AccountNumber,
			HolderName:    in.HolderName,
			BranchName:    in.BranchName,
			Size:          size,
			MICRLine:      raw,
			MICRDisplay:   DisplayMICRLine(raw),
		})
	}

	return &CheckbookData{
		Reference:     in.Reference,
		BranchName:    in.BranchName,
		HolderName:    in.HolderName,
		AccountNumber: in.AccountNumber,
		RoutingNumber: in.RoutingNumber,
		FirstSerial:   in.FirstSerial,
		LastSerial:    in.LastSerial,
		Checks:        checks,
	}
}
