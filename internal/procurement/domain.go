package procurement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/odyssey-erp/approvisionnement/internal/shared"
)

// Status is the lifecycle state of a procurement record.
type Status string

// Record statuses, serialised with the collaborator's exact labels.
const (
	StatusPending   Status = "En attente"
	StatusReceived  Status = "Reçu"
	StatusCancelled Status = "Annulé"
)

// Valid reports whether s belongs to the status domain.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusPending, StatusReceived, StatusCancelled}
}

// LineItem is one article line of a record. Amount == Quantity * UnitPrice.
type LineItem struct {
	ArticleID string  `json:"articleId" yaml:"articleId" validate:"required"`
	Quantity  float64 `json:"quantite" yaml:"quantite" validate:"gt=0"`
	UnitPrice float64 `json:"prixUnitaire" yaml:"prixUnitaire" validate:"gte=0"`
	Amount    float64 `json:"montant" yaml:"montant"`
}

// UnmarshalJSON accepts numeric article ids as JSON-Server emits them.
func (l *LineItem) UnmarshalJSON(b []byte) error {
	type plain LineItem
	aux := struct {
		*plain
		ArticleID shared.FlexID `json:"articleId"`
	}{plain: (*plain)(l)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	l.ArticleID = string(aux.ArticleID)
	return nil
}

// Recompute refreshes Amount from Quantity and UnitPrice.
func (l *LineItem) Recompute() {
	l.Amount = l.Quantity * l.UnitPrice
}

// Record is a persisted approvisionnement.
type Record struct {
	ID           string     `json:"id,omitempty" yaml:"id"`
	Reference    string     `json:"reference" yaml:"reference"`
	Date         string     `json:"date" yaml:"date"`
	SupplierID   string     `json:"fournisseurId" yaml:"fournisseurId"`
	SupplierName string     `json:"fournisseur,omitempty" yaml:"fournisseur"`
	Notes        string     `json:"observations,omitempty" yaml:"observations"`
	Lines        []LineItem `json:"articles" yaml:"articles"`
	TotalAmount  float64    `json:"montantTotal" yaml:"montantTotal"`
	Status       Status     `json:"statut" yaml:"statut"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// UnmarshalJSON accepts numeric ids, which JSON-Server assigns on POST.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	aux := struct {
		*plain
		ID         shared.FlexID `json:"id"`
		SupplierID shared.FlexID `json:"fournisseurId"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ID = string(aux.ID)
	r.SupplierID = string(aux.SupplierID)
	return nil
}

// Clone returns a deep copy so callers never alias stored line slices.
func (r Record) Clone() Record {
	if r.Lines != nil {
		r.Lines = append([]LineItem(nil), r.Lines...)
	}
	return r
}

// Draft is the structured input submitted for creation.
type Draft struct {
	Reference  string     `json:"reference"`
	Date       string     `json:"date" validate:"required,datetime=2006-01-02"`
	SupplierID string     `json:"fournisseurId" validate:"required"`
	Notes      string     `json:"observations"`
	Lines      []LineItem `json:"articles" validate:"required,min=1,dive"`
	Status     Status     `json:"statut" validate:"omitempty,status"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Reference    *string     `json:"reference,omitempty"`
	Date         *string     `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SupplierID   *string     `json:"fournisseurId,omitempty" validate:"omitempty,min=1"`
	SupplierName *string     `json:"fournisseur,omitempty"`
	Notes        *string     `json:"observations,omitempty"`
	Lines        *[]LineItem `json:"articles,omitempty" validate:"omitempty,min=1,dive"`
	TotalAmount  *float64    `json:"montantTotal,omitempty"`
	Status       *Status     `json:"statut,omitempty" validate:"omitempty,status"`
	UpdatedAt    *time.Time  `json:"updatedAt,omitempty"`
}

// Apply merges the patch into r. CreatedAt is never touched.
func (p Patch) Apply(r Record) Record {
	r = r.Clone()
	if p.Reference != nil {
		r.Reference = *p.Reference
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.SupplierID != nil {
		r.SupplierID = *p.SupplierID
	}
	if p.SupplierName != nil {
		r.SupplierName = *p.SupplierName
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Lines != nil {
		r.Lines = append([]LineItem(nil), (*p.Lines)...)
	}
	if p.TotalAmount != nil {
		r.TotalAmount = *p.TotalAmount
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.UpdatedAt != nil {
		r.UpdatedAt = *p.UpdatedAt
	}
	return r
}

// Query narrows a store listing. Fields map onto the collaborator's query language.
type Query struct {
	SupplierID    string
	Status        Status
	Reference     string
	ReferenceLike string
	Sort          string
	Order         string
	Page          int
	Limit         int
}

// Store persists procurement records. Implementations: MemoryStore,
// RemoteStore (JSON-Server) and PostgresStore.
type Store interface {
	List(ctx context.Context, q Query) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, id string, patch Patch) (Record, error)
	Delete(ctx context.Context, id string) error
}

// Sortable fields accepted in Query.Sort.
const (
	SortReference = "reference"
	SortDate      = "date"
	SortTotal     = "montantTotal"
	SortCreatedAt = "createdAt"
)

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = shared.ErrNotFound
	// ErrValidation indicates invalid input.
	ErrValidation = shared.ErrValidation
	// ErrConflict indicates a duplicate reference.
	ErrConflict = shared.ErrConflict
	// ErrTransport indicates the collaborator could not be reached.
	ErrTransport = shared.ErrTransport
	// ErrIndex indicates a line index out of bounds.
	ErrIndex = shared.ErrIndex
)
