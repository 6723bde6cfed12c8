package services

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Supported resume upload types and size ceiling.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	MaxResumeSize = 10 << 20
)

// ContactInfo holds the fields extracted from a resume. A nil field means
// extraction failed and the user must supply it manually.
type ContactInfo struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	FullText string  `json:"full_text"`
}

// TextDecoder turns an uploaded document's bytes into plain text. Decoding
// PDF and DOCX containers lives behind this seam.
type TextDecoder interface {
	Decode(contentType string, data []byte) (string, error)
}

// PlainTextDecoder treats the payload as UTF-8 text. It serves text-based
// uploads and tests; binary container decoding plugs in via TextDecoder.
type PlainTextDecoder struct{}

func (PlainTextDecoder) Decode(contentType string, data []byte) (string, error) {
	return string(data), nil
}

// ResumeExtractor validates an upload and pulls contact fields out of the
// decoded text with line and pattern heuristics.
type ResumeExtractor struct {
	decoder TextDecoder
}

func NewResumeExtractor(decoder TextDecoder) *ResumeExtractor {
	if decoder == nil {
		decoder = PlainTextDecoder{}
	}
	return &ResumeExtractor{decoder: decoder}
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)

	nameLinePattern        = regexp.MustCompile(`^[A-Za-z\s.,'-]+$`)
	nameLabelPattern       = regexp.MustCompile(`(?i)Name\s*:?\s*([A-Za-z .,'-]+)`)
	capitalizedPairPattern = regexp.MustCompile(`(?m)^([A-Z][a-z]+\s+[A-Z][a-z]+)`)
	nonDigitPattern        = regexp.MustCompile(`\D`)
)

// Extract decodes the upload and extracts contact fields. Only PDF and DOCX
// content types are accepted and the payload must fit MaxResumeSize.
func (e *ResumeExtractor) Extract(contentType string, data []byte) (*ContactInfo, error) {
	if contentType != MimePDF && contentType != MimeDOCX {
		return nil, fmt.Errorf("unsupported file type %q, expected PDF or DOCX", contentType)
	}
	if len(data) > MaxResumeSize {
		return nil, fmt.Errorf("resume exceeds maximum size of %d bytes", MaxResumeSize)
	}

	text, err := e.decoder.Decode(contentType, data)
	if err != nil {
		return nil, fmt.Errorf("decode resume: %w", err)
	}

	info := ExtractContactInfo(text)
	slog.Info("Resume processed",
		"content_type", contentType,
		"text_length", len(text),
		"name_found", info.Name != nil,
		"email_found", info.Email != nil,
		"phone_found", info.Phone != nil)
	return info, nil
}

// ExtractContactInfo pulls name, email and phone out of resume text. Name
// detection tries the first non-empty line, then a "Name:" label, then the
// first capitalized word pair at a line start.
func ExtractContactInfo(text string) *ContactInfo {
	info := &ContactInfo{FullText: text}

	email := emailPattern.FindString(text)
	if email != "" {
		info.Email = &email
	}

	phone := phonePattern.FindString(text)
	if phone != "" {
		info.Phone = &phone
	}

	if name := extractName(text, email, phone); name != "" {
		info.Name = &name
	}

	return info
}

func extractName(text, email, phone string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == email || line == phone {
			break
		}
		if nameLinePattern.MatchString(line) && len(strings.Fields(line)) <= 4 {
			return line
		}
		break
	}

	if match := nameLabelPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	if match := capitalizedPairPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// ValidEmail mirrors the profile form's email check for extracted values.
func ValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	domain := parts[1]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ValidPhone requires at least ten digits once formatting is stripped.
func ValidPhone(phone string) bool {
	digits := nonDigitPattern.ReplaceAllString(phone, "")
	return len(digits) >= 10
}
