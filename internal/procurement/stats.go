package procurement

// SupplierShare is the supplier carrying the largest amount.
type SupplierShare struct {
	Name       string  `json:"nom"`
	Amount     float64 `json:"montant"`
	Percentage float64 `json:"pourcentage"`
}

// Stats summarises a set of records.
type Stats struct {
	TotalAmount float64       `json:"totalMontant"`
	Count       int           `json:"nombreApprovisionnements"`
	Pending     int           `json:"enAttente"`
	Received    int           `json:"recus"`
	Cancelled   int           `json:"annules"`
	Principal   SupplierShare `json:"fournisseurPrincipal"`
}

// ComputeStats aggregates records. Ties for the principal supplier go to the
// name that sorts first.
func ComputeStats(records []Record) Stats {
	var st Stats
	bySupplier := make(map[string]float64)
	for _, rec := range records {
		st.TotalAmount += rec.TotalAmount
		st.Count++
		switch rec.Status {
		case StatusPending:
			st.Pending++
		case StatusReceived:
			st.Received++
		case StatusCancelled:
			st.Cancelled++
		}
		bySupplier[rec.SupplierName] += rec.TotalAmount
	}
	first := true
	for name, amount := range bySupplier {
		if first || amount > st.Principal.Amount || (amount == st.Principal.Amount && name < st.Principal.Name) {
			st.Principal = SupplierShare{Name: name, Amount: amount}
			first = false
		}
	}
	if st.TotalAmount > 0 {
		st.Principal.Percentage = st.Principal.Amount / st.TotalAmount * 100
	}
	return st
}
