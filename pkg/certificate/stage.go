package certificate

import "math"

// Subject carries the record values bound into a certificate.
type Subject struct {
	Name   string
	Course string
	Batch  string
	Status string
}

// Role identifies a text block in the layout.
type Role string

const (
	RoleTitle          Role = "title"
	RoleLead           Role = "lead"
	RoleName           Role = "name"
	RoleBridge         Role = "bridge"
	RoleCourse         Role = "course"
	RoleBatch          Role = "batch"
	RoleStatus         Role = "status"
	RoleDate           Role = "date"
	RoleSignatureLabel Role = "signature_label"
)

// TextBlock is one centered line of the certificate body.
type TextBlock struct {
	Role     Role
	Text     string
	Size     float64
	Bold     bool
	Baseline int
}

// Staged is a layout bound to one subject and date, ready to rasterize.
type Staged struct {
	Layout Layout
	Body   []TextBlock
	// LogoTop is the y coordinate of the logo slot.
	LogoTop        int
	Date           TextBlock
	SignatureLabel TextBlock
}

// Stage binds subject and the formatted date into layout.
func Stage(layout Layout, subject Subject, date string) *Staged {
	fonts := layout.Fonts
	lines := []TextBlock{
		{Role: RoleTitle, Text: layout.Title, Size: fonts.Title, Bold: true},
		{Role: RoleLead, Text: "This is to certify that", Size: fonts.Body},
		{Role: RoleName, Text: subject.Name, Size: fonts.Name, Bold: true},
		{Role: RoleBridge, Text: "has successfully completed the course", Size: fonts.Body},
		{Role: RoleCourse, Text: subject.Course, Size: fonts.Course, Bold: true},
		{Role: RoleBatch, Text: "Batch: " + subject.Batch, Size: fonts.Body},
		{Role: RoleStatus, Text: "Status: " + subject.Status, Size: fonts.Body},
	}

	inset := layout.Border + layout.Padding
	logoTop := inset + layout.TopMargin
	cursor := logoTop
	if layout.Logo.Height > 0 {
		cursor += layout.Logo.Height + layout.Logo.Margin
	}
	for i := range lines {
		advance := lines[i].Size * layout.LineSpacing
		// half-leading above, then an ascent of ~0.8em
		lines[i].Baseline = cursor + int(math.Round((advance-lines[i].Size)/2+lines[i].Size*0.8))
		cursor += int(math.Round(advance))
	}

	return &Staged{
		Layout:         layout,
		Body:           lines,
		LogoTop:        logoTop,
		Date:           TextBlock{Role: RoleDate, Text: "Date: " + date, Size: fonts.Footer},
		SignatureLabel: TextBlock{Role: RoleSignatureLabel, Text: "Signature", Size: fonts.Footer},
	}
}

// Texts returns every text drawn on the certificate in drawing order.
func (s *Staged) Texts() []string {
	out := make([]string, 0, len(s.Body)+2)
	for _, line := range s.Body {
		out = append(out, line.Text)
	}
	return append(out, s.Date.Text, s.SignatureLabel.Text)
}

// Text returns the text for role, or "" when the role is not staged.
func (s *Staged) Text(role Role) string {
	switch role {
	case RoleDate:
		return s.Date.Text
	case RoleSignatureLabel:
		return s.SignatureLabel.Text
	}
	for _, line := range s.Body {
		if line.Role == role {
			return line.Text
		}
	}
	return ""
}
