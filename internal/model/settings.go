package model

const (
	SettingsCollection = "settings"
	SiteSettingsID     = "site"
)

// Settings is the typed view of the global site settings document. The raw
// document may hold more fields; they are kept in Extra.
type Settings struct {
	Title        string                 `json:"title,omitempty"`
	Subtitle     string                 `json:"subtitle,omitempty"`
	PrimaryColor string                 `json:"primaryColor,omitempty"`
	WhatsApp     string                 `json:"whatsapp,omitempty"`
	Email        string                 `json:"email,omitempty"`
	HeroImage    string                 `json:"heroImage,omitempty"`
	ShowServices *bool                  `json:"show_services,omitempty"`
	ShowFAQ      *bool                  `json:"show_faq,omitempty"`
	ShowTarot    *bool                  `json:"show_tarot,omitempty"`
	UpdatedAt    string                 `json:"updatedAt,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

var settingsKnownFields = map[string]struct{}{
	"title": {}, "subtitle": {}, "primaryColor": {}, "whatsapp": {}, "email": {},
	"heroImage": {}, "show_services": {}, "show_faq": {}, "show_tarot": {}, FieldUpdatedAt: {},
}

// SettingsFromDocument builds the typed settings view. A nil document yields
// empty settings.
func SettingsFromDocument(doc *Document) *Settings {
	s := &Settings{}
	if doc == nil {
		return s
	}
	s.Title = doc.String("title")
	s.Subtitle = doc.String("subtitle")
	s.PrimaryColor = doc.String("primaryColor")
	s.WhatsApp = doc.String("whatsapp")
	s.Email = doc.String("email")
	s.HeroImage = doc.String("heroImage")
	s.ShowServices = doc.Bool("show_services")
	s.ShowFAQ = doc.Bool("show_faq")
	s.ShowTarot = doc.Bool("show_tarot")
	s.UpdatedAt = doc.String(FieldUpdatedAt)

	for k, v := range doc.Fields {
		if _, known := settingsKnownFields[k]; known {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]interface{})
		}
		s.Extra[k] = v
	}
	return s
}

// SectionVisible reports whether a page section should be shown. Only an
// explicit false hides it.
func SectionVisible(flag *bool) bool {
	return flag == nil || *flag
}
