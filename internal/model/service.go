package model

const (
	ServicesCollection = "services"

	FieldCategory    = "category"
	FieldOrder       = "order"
	FieldActive      = "active"
	FieldUpdatedAt   = "updatedAt"
	FieldTitle       = "title"
	FieldName        = "name"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldDuration    = "duration"
	FieldImage       = "image"
)

// ServiceRecord is one entry of the services list, scoped to a category.
type ServiceRecord struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Order       *float64 `json:"order,omitempty"`
	Active      *bool    `json:"active,omitempty"`
	Title       string   `json:"title,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Duration    *float64 `json:"duration,omitempty"` // in days
	Image       string   `json:"image,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
	Version     int64    `json:"version"`
}

// SortKey is the order value with an absent order treated as 0.
func (s *ServiceRecord) SortKey() float64 {
	if s.Order == nil {
		return 0
	}
	return *s.Order
}

// IsActive treats an unset flag as active.
func (s *ServiceRecord) IsActive() bool {
	return s.Active == nil || *s.Active
}

// DisplayTitle prefers title and falls back to name.
func (s *ServiceRecord) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// ServiceFromDocument maps a stored document onto a ServiceRecord.
func ServiceFromDocument(doc *Document) *ServiceRecord {
	return &ServiceRecord{
		ID:          doc.ID,
		Category:    doc.String(FieldCategory),
		Order:       doc.Number(FieldOrder),
		Active:      doc.Bool(FieldActive),
		Title:       doc.String(FieldTitle),
		Name:        doc.String(FieldName),
		Description: doc.String(FieldDescription),
		Price:       doc.Number(FieldPrice),
		Duration:    doc.Number(FieldDuration),
		Image:       doc.String(FieldImage),
		UpdatedAt:   doc.String(FieldUpdatedAt),
		Version:     doc.Version,
	}
}

// ServiceInput carries the editable fields of a service. Nil pointers are
// left untouched on update.
type ServiceInput struct {
	Title       *string  `json:"title" binding:"omitempty,max=200"`
	Name        *string  `json:"name" binding:"omitempty,max=200"`
	Description *string  `json:"description" binding:"omitempty,max=5000"`
	Price       *float64 `json:"price" binding:"omitempty,min=0"`
	Duration    *float64 `json:"duration" binding:"omitempty,min=0"`
	Image       *string  `json:"image" binding:"omitempty,max=1000"`
	Order       *float64 `json:"order"`
	Active      *bool    `json:"active"`
	Category    *string  `json:"category" binding:"omitempty,max=64"`
}

// Fields returns the supplied fields as a document patch.
func (in *ServiceInput) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if in == nil {
		return fields
	}
	if in.Title != nil {
		fields[FieldTitle] = *in.Title
	}
	if in.Name != nil {
		fields[FieldName] = *in.Name
	}
	if in.Description != nil {
		fields[FieldDescription] = *in.Description
	}
	if in.Price != nil {
		fields[FieldPrice] = *in.Price
	}
	if in.Duration != nil {
		fields[FieldDuration] = *in.Duration
	}
	if in.Image != nil {
		fields[FieldImage] = *in.Image
	}
	if in.Order != nil {
		fields[FieldOrder] = *in.Order
	}
	if in.Active != nil {
		fields[FieldActive] = *in.Active
	}
	if in.Category != nil {
		fields[FieldCategory] = *in.Category
	}
	return fields
}
