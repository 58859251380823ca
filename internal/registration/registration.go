// Package registration implements the self-service company sign-up: a three
// step wizard (company, administrator, address) submitted as one multipart
// request.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"meridian/internal/notify"
	"meridian/internal/platform/logger"
	"meridian/internal/platform/metrics"
	"meridian/internal/platform/tracer"
	"meridian/internal/transport/apiclient"
	"meridian/internal/wizard"
	dErrors "meridian/pkg/domain-errors"
	s "meridian/pkg/string"
	"meridian/pkg/validation"
)

// SubmitPath receives the registration. It is a public endpoint.
const SubmitPath = "/api/register-company/"

// Step titles.
const (
	StepCompany = "Company"
	StepAdmin   = "Administrator"
	StepAddress = "Address"
)

type Notifier interface {
	Enqueue(msg notify.Message) string
}

// Registrar owns the form being filled and submits it. The form must not be
// edited while a wizard transition is in flight.
type Registrar struct {
	api      Doer
	postal   *PostalLookup
	notifier Notifier
	form     *Form

	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Registrar)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registrar) {
		r.logger = l
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(r *Registrar) {
		r.tracer = t
	}
}

// WithMetrics is forwarded to the wizard built by NewWizard.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registrar) {
		r.metrics = m
	}
}

// WithPostalBaseURL points address lookups at another ViaCEP-compatible host.
func WithPostalBaseURL(baseURL string) Option {
	return func(r *Registrar) {
		r.postal = NewPostalLookup(r.api, baseURL)
	}
}

// WithClock overrides the registration timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registrar) {
		r.now = now
	}
}

func New(api Doer, notifier Notifier, opts ...Option) *Registrar {
	r := &Registrar{
		api:      api,
		notifier: notifier,
		form:     &Form{},
		logger:   logger.Discard(),
		tracer:   tracer.NewNoop(),
		now:      time.Now,
	}
	r.postal = NewPostalLookup(api, "")
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Form returns the form being filled.
func (r *Registrar) Form() *Form {
	return r.form
}

// Steps returns the wizard pages bound to the registrar's form.
func (r *Registrar) Steps() []wizard.Step {
	return []wizard.Step{
		{
			Title: StepCompany,
			Validate: r.normalized(wizard.Struct(func() any {
				return &r.form.Company
			})),
		},
		{
			Title: StepAdmin,
			Validate: r.normalized(wizard.Struct(func() any {
				return &r.form.Admin
			})),
		},
		{
			Title:          StepAddress,
			Validate:       r.normalized(r.validatePostalCode),
			CustomValidate: r.validateAddress,
		},
	}
}

// NewWizard builds a wizard that submits the form after the last step.
func (r *Registrar) NewWizard(opts ...wizard.Option) (*wizard.Engine, error) {
	base := []wizard.Option{wizard.WithLogger(r.logger), wizard.WithMetrics(r.metrics)}
	return wizard.New(r.Steps(), r.Submit, append(base, opts...)...)
}

func (r *Registrar) normalized(v wizard.Validator) wizard.Validator {
	return func(ctx context.Context) wizard.Result {
		r.form.Normalize()
		return v(ctx)
	}
}

func (r *Registrar) validatePostalCode(context.Context) wizard.Result {
	if len(s.Digits(r.form.Address.PostalCode)) != 8 {
		return wizard.Invalid(wizard.FieldError{Field: "cep", Message: "must have 8 digits"})
	}
	return wizard.Valid()
}

// validateAddress completes blank fields from the postal code and then checks
// the whole step. A malformed code was already reported by validatePostalCode.
// When the lookup service is down the fields must be filled by hand.
func (r *Registrar) validateAddress(ctx context.Context) wizard.Result {
	addr := &r.form.Address
	if len(s.Digits(addr.PostalCode)) != 8 {
		return wizard.Invalid()
	}

	found, err := r.postal.Lookup(ctx, addr.PostalCode)
	switch {
	case errors.Is(err, ErrPostalCodeNotFound):
		return wizard.Invalid(wizard.FieldError{Field: "cep", Message: "postal code not found"})
	case ctx.Err() != nil:
		return wizard.Failed(ctx.Err())
	case err != nil:
		// The address can still be typed in by hand.
		r.logger.WarnContext(ctx, "postal code lookup failed", "error", err,
			"circuit", r.postal.Breaker().State().String())
	default:
		found.Fill(addr)
	}
	return wizard.Struct(func() any { return addr })(ctx)
}

// Submit sends the registration as multipart/form-data.
func (r *Registrar) Submit(ctx context.Context) (err error) {
	f := r.form
	ctx, span := r.tracer.Start(ctx, tracer.SpanRegistrationRun, tracer.String(tracer.AttrTenant, f.Company.Schema))
	defer func() { span.End(err) }()

	if err := validation.Validate(f.Company); err != nil {
		return err
	}
	if err := validation.Validate(f.Admin); err != nil {
		return err
	}
	if err := validation.Validate(f.Address); err != nil {
		return err
	}

	resp, err := r.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   SubmitPath,
		Form:   r.multipart(),
	})
	if err != nil {
		var se *apiclient.StatusError
		if errors.As(err, &se) {
			r.notifier.Enqueue(notify.Message{
				Type:  notify.TypeError,
				Title: "Registration failed",
				Text:  apiclient.BodyMessage(se.Body),
			})
		}
		r.logger.ErrorContext(ctx, "registration failed", "schema", f.Company.Schema, "error", err)
		return err
	}
	if resp.Failure != nil {
		return dErrors.Wrap(&apiclient.HandledError{Classification: *resp.Failure}, dErrors.CodeHandled, resp.Failure.Message)
	}

	r.logger.InfoContext(ctx, "company registered", "schema", f.Company.Schema)
	r.notifier.Enqueue(notify.Message{
		Type:  notify.TypeSuccess,
		Title: "Company registered",
		Text:  "You can now sign in at " + f.Company.Schema + ".",
	})
	return nil
}

func (r *Registrar) multipart() *apiclient.Form {
	f := r.form
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("company_name", f.Company.Name)
	set("schema_name", f.Company.Schema)
	set("document", f.Company.Document)
	if f.Company.Logo == nil {
		set("logo", f.Company.LogoURL)
	}
	set("email", f.Admin.Email)
	set("phone", f.Admin.Phone)
	set("password", f.Admin.Password)
	set("nickname", f.Admin.Nickname)
	v.Set("acceptance", strconv.FormatBool(f.Admin.Accepted))
	set("cep", f.Address.PostalCode)
	set("endereco", f.Address.Street)
	set("numero", f.Address.Number)
	set("complemento", f.Address.Complement)
	set("bairro", f.Address.District)
	set("cidade", f.Address.City)
	set("estado", f.Address.State)
	set("pais", f.Address.Country)
	v.Set("data_cadastro", r.now().UTC().Format(time.RFC3339))

	form := &apiclient.Form{Values: v}
	if p := filePart("logo", f.Company.Logo); p != nil {
		form.Files = append(form.Files, *p)
	}
	if p := filePart("imagem", f.Admin.Avatar); p != nil {
		form.Files = append(form.Files, *p)
	}
	return form
}

func filePart(field string, f *File) *apiclient.FilePart {
	if f == nil || len(f.Content) == 0 {
		return nil
	}
	return &apiclient.FilePart{
		Field:       field,
		Filename:    f.Name,
		ContentType: f.ContentType,
		Content:     f.Content,
	}
}
