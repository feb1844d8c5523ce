//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/target/studentdash/internal/errors"
)

// custom validation tags
const (
	notBlankTag   = "notblank"
	looseEmailTag = "loose_email"
)

var looseEmailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var validate = newValidator() //nolint:gochecknoglobals // validator caches struct metadata

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use form tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlankValidation)
	_ = v.RegisterValidation(looseEmailTag, looseEmailValidation)
	return v
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func looseEmailValidation(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	return ok && looseEmailRe.MatchString(str)
}

// ValidEmail reports whether s looks like an email address (something@something.something).
func ValidEmail(s string) bool {
	return looseEmailRe.MatchString(strings.TrimSpace(s))
}

// fieldMessages maps field+tag to the message shown next to the input.
var fieldMessages = map[string]string{ //nolint:gochecknoglobals // read-only lookup table
	"name." + notBlankTag:           "Name is required",
	"email." + notBlankTag:          "Email is required",
	"email." + looseEmailTag:        "Email is invalid",
	"course." + notBlankTag:         "Course is required",
	"enrollmentDate." + notBlankTag: "Enrollment date is required",
	"enrollmentDate.datetime":       "Enrollment date must be a valid date (YYYY-MM-DD)",
	"gpa.gte":                       gpaRangeMessage,
	"gpa.lte":                       gpaRangeMessage,
}

const gpaRangeMessage = "GPA must be between 0 and 10.0"

// StudentForm holds the raw values submitted by the add and edit student forms.
type StudentForm struct {
	Name           string `form:"name"`
	Email          string `form:"email"`
	Course         string `form:"course"`
	EnrollmentDate string `form:"enrollmentDate"`
	GPA            string `form:"gpa"`
	AvatarURL      string `form:"avatarUrl"`
}

// studentInput is the validated shape of a StudentForm.
type studentInput struct {
	Name           string   `form:"name"           validate:"notblank"`
	Email          string   `form:"email"          validate:"notblank,loose_email"`
	Course         string   `form:"course"         validate:"notblank"`
	EnrollmentDate string   `form:"enrollmentDate" validate:"notblank,datetime=2006-01-02"`
	GPA            *float64 `form:"gpa"            validate:"omitempty,gte=0,lte=10"`
}

// Validate checks the form and returns the create request it describes.
// A failure is a ValidationFailed error carrying one message per invalid field.
func (f StudentForm) Validate() (CreateStudentRequest, error) {
	in := studentInput{
		Name:           strings.TrimSpace(f.Name),
		Email:          strings.TrimSpace(f.Email),
		Course:         strings.TrimSpace(f.Course),
		EnrollmentDate: strings.TrimSpace(f.EnrollmentDate),
	}

	fields := map[string]string{}
	if raw := strings.TrimSpace(f.GPA); raw != "" {
		gpa, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fields["gpa"] = gpaRangeMessage
		} else {
			in.GPA = &gpa
		}
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return CreateStudentRequest{}, apperrors.Unknown(err)
		}
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; seen {
				continue
			}
			msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
			if !ok {
				msg = "Invalid value"
			}
			fields[fe.Field()] = msg
		}
	}

	if len(fields) > 0 {
		return CreateStudentRequest{}, apperrors.ValidationFailed(fields)
	}

	req := CreateStudentRequest{
		Name:           in.Name,
		Email:          in.Email,
		Course:         in.Course,
		EnrollmentDate: in.EnrollmentDate,
		GPA:            in.GPA,
	}
	if avatar := strings.TrimSpace(f.AvatarURL); avatar != "" {
		req.AvatarURL = &avatar
	}
	return req, nil
}

// ValidateUpdate checks the form like Validate and returns it as a full update.
// The edit form submits every field, so a blank GPA or avatar clears the stored one.
func (f StudentForm) ValidateUpdate() (UpdateStudentRequest, error) {
	req, err := f.Validate()
	if err != nil {
		return UpdateStudentRequest{}, err
	}
	return UpdateStudentRequest{
		Name:           &req.Name,
		Email:          &req.Email,
		Course:         &req.Course,
		EnrollmentDate: &req.EnrollmentDate,
		GPA:            req.GPA,
		AvatarURL:      req.AvatarURL,
		ClearGPA:       req.GPA == nil,
		ClearAvatarURL: req.AvatarURL == nil,
	}, nil
}

// FormFromStudent pre-fills an edit form.
func FormFromStudent(s Student) StudentForm {
	f := StudentForm{
		Name:           s.Name,
		Email:          s.Email,
		Course:         s.Course,
		EnrollmentDate: s.EnrollmentDate,
		GPA:            s.GPAString(),
	}
	if s.AvatarURL != nil {
		f.AvatarURL = *s.AvatarURL
	}
	return f
}

// Form renders a JSON create request as the equivalent form submission.
func (r CreateStudentRequest) Form() StudentForm {
	f := StudentForm{
		Name:           r.Name,
		Email:          r.Email,
		Course:         r.Course,
		EnrollmentDate: r.EnrollmentDate,
	}
	if r.GPA != nil {
		f.GPA = strconv.FormatFloat(*r.GPA, 'f', -1, 64)
	}
	if r.AvatarURL != nil {
		f.AvatarURL = *r.AvatarURL
	}
	return f
}

// Validated checks only the fields present in u, with the same rules as the forms,
// and returns a copy with string fields trimmed.
func (u UpdateStudentRequest) Validated() (UpdateStudentRequest, error) {
	out := u
	fields := map[string]string{}
	check := func(field string, value any, tags string) {
		var verrs validator.ValidationErrors
		if err := validate.Var(value, tags); errors.As(err, &verrs) && len(verrs) > 0 {
			msg, ok := fieldMessages[field+"."+verrs[0].Tag()]
			if !ok {
				msg = "Invalid value"
			}
			fields[field] = msg
		}
	}
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}

	out.Name, out.Email, out.Course, out.EnrollmentDate = trim(u.Name), trim(u.Email), trim(u.Course), trim(u.EnrollmentDate)
	if out.Name != nil {
		check("name", *out.Name, notBlankTag)
	}
	if out.Email != nil {
		check("email", *out.Email, notBlankTag+","+looseEmailTag)
	}
	if out.Course != nil {
		check("course", *out.Course, notBlankTag)
	}
	if out.EnrollmentDate != nil {
		check("enrollmentDate", *out.EnrollmentDate, notBlankTag+",datetime="+EnrollmentDateLayout)
	}
	if out.GPA != nil {
		check("gpa", *out.GPA, "gte=0,lte=10")
	}

	if len(fields) > 0 {
		return UpdateStudentRequest{}, apperrors.ValidationFailed(fields)
	}
	return out, nil
}
