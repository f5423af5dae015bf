package dispatch

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ellogroup/ello-golang-orgrouter/audit"
	"github.com/ellogroup/ello-golang-orgrouter/decision"
	"github.com/ellogroup/ello-golang-orgrouter/googledrive"
	"github.com/ellogroup/ello-golang-orgrouter/salesforce"
	"github.com/ellogroup/ello-golang-orgrouter/tracing"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Decider interface {
	Decide(ctx context.Context, executionId, action string, workflowCtx map[string]any) (*decision.Decision, error)
}

type Notifier interface {
	Notify(ctx context.Context, event string, data json.RawMessage, headers map[string]string) error
}

type Params struct {
	// HttpClient is used for the salesforce and google drive calls
	HttpClient HttpClient `validate:"required"`
	Decider    Decider    `validate:"required"`
	Notifier   Notifier   `validate:"required"`
	// SalesforceApiVersion defaults to salesforce.DefaultApiVersion
	SalesforceApiVersion int `validate:"gte=0"`
	// DriveUploadUrl defaults to googledrive.DefaultUploadUrl
	DriveUploadUrl string
	// AuditBestEffort logs a failed webhook notification instead of aborting the execution
	AuditBestEffort bool
	Log             *zap.Logger
}

// ActionDispatcher runs one action per execution: decide, audit, then query salesforce or upload to drive.
// It holds no per-execution state and may be shared.
type ActionDispatcher struct {
	httpClient      HttpClient
	decider         Decider
	notifier        Notifier
	apiVersion      int
	driveUploadUrl  string
	auditBestEffort bool
	log             *zap.Logger
}

func NewActionDispatcher(p Params) (*ActionDispatcher, error) {
	if err := validator.New().Struct(p); err != nil {
		return nil, err
	}
	apiVersion := p.SalesforceApiVersion
	if apiVersion == 0 {
		apiVersion = salesforce.DefaultApiVersion
	}
	uploadUrl := p.DriveUploadUrl
	if uploadUrl == "" {
		uploadUrl = googledrive.DefaultUploadUrl
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &ActionDispatcher{
		httpClient:      p.HttpClient,
		decider:         p.Decider,
		notifier:        p.Notifier,
		apiVersion:      apiVersion,
		driveUploadUrl:  uploadUrl,
		auditBestEffort: p.AuditBestEffort,
		log:             log.Named("ActionDispatcher"),
	}, nil
}

type execution struct {
	id          string
	params      Parameters
	workflowCtx WorkflowContext
	decision    *decision.Decision
	output      [][]Record
	log         *zap.Logger
}

type step struct {
	name string
	run  func(ctx context.Context, e *execution) error
}

func (d *ActionDispatcher) pipeline() []step {
	return []step{
		{name: "decide", run: d.decide},
		{name: "audit", run: d.audit},
		{name: "dispatch", run: d.dispatch},
	}
}

// Execute runs the pipeline for p. The first failing step stops the execution and its
// error, one of ParameterError, UpstreamError, ParseError or SchemaError, is returned.
// An unsupported action is not an error: it yields a single {"success":false} record.
func (d *ActionDispatcher) Execute(ctx context.Context, p Parameters, workflowCtx WorkflowContext) (output [][]Record, err error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	e := &execution{
		id:          uuid.NewString(),
		params:      p,
		workflowCtx: workflowCtx,
	}
	e.log = d.log.With(zap.String("execution_id", e.id), zap.String("action", string(p.Action)))

	ctx, span := tracing.StartSpan(ctx, "orgrouter.execute",
		attribute.String("execution_id", e.id),
		attribute.String("action", string(p.Action)))
	defer func() { tracing.EndSpan(span, err) }()

	for _, s := range d.pipeline() {
		stepCtx, stepSpan := tracing.StartSpan(ctx, "orgrouter."+s.name)
		stepErr := s.run(stepCtx, e)
		tracing.EndSpan(stepSpan, stepErr)
		if stepErr != nil {
			e.log.Error("execution failed", zap.String("step", s.name), zap.Error(stepErr))
			return nil, stepErr
		}
	}
	e.log.Info("execution finished", zap.Int("records", len(e.output[0])))
	return e.output, nil
}

func (d *ActionDispatcher) decide(ctx context.Context, e *execution) error {
	dec, err := d.decider.Decide(ctx, e.id, string(e.params.Action), e.workflowCtx)
	if err != nil {
		return classify(ServiceDecision, err)
	}
	e.decision = dec
	e.log.Debug("decision received")
	return nil
}

func (d *ActionDispatcher) audit(ctx context.Context, e *execution) error {
	err := d.notifier.Notify(ctx, audit.EventDecision, e.decision.Raw, map[string]string{
		decision.ExecutionIdHeader: e.id,
	})
	if err == nil {
		return nil
	}
	if d.auditBestEffort {
		e.log.Warn("webhook notification failed, continuing", zap.Error(err))
		return nil
	}
	return classify(ServiceWebhook, err)
}

func (d *ActionDispatcher) dispatch(ctx context.Context, e *execution) error {
	switch e.params.Action {
	case ActionFetchSalesforceData:
		return d.fetchSalesforceData(ctx, e)
	case ActionUploadToGoogleDrive:
		return d.uploadToGoogleDrive(ctx, e)
	default:
		e.log.Warn("unsupported action")
		e.output = [][]Record{{invalidActionRecord}}
		return nil
	}
}

func (d *ActionDispatcher) fetchSalesforceData(ctx context.Context, e *execution) error {
	org, err := e.decision.Selection.SalesforceOrg()
	if err != nil {
		return classify(ServiceDecision, err)
	}
	h, err := salesforce.NewRequestHelper(d.httpClient, salesforce.StaticToken(org.AccessToken), org.InstanceUrl, d.apiVersion)
	if err != nil {
		return classify(ServiceSalesforce, err)
	}
	raw, err := salesforce.QueryRaw(ctx, h, *e.params.SalesforceQuery)
	if err != nil {
		return classify(ServiceSalesforce, err)
	}
	logQuerySummary(e.log, raw)
	return e.setOutput(ServiceSalesforce, raw)
}

// logQuerySummary logs the size of a query result. The body is still returned as received
// when it is not a query envelope.
func logQuerySummary(log *zap.Logger, raw json.RawMessage) {
	resp, err := salesforce.ParseQueryResponse[json.RawMessage](raw)
	if err != nil || resp == nil {
		log.Debug("salesforce response is not a query envelope", zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.Int("total_size", resp.TotalSize),
		zap.Int("returned", len(resp.Records)),
	}
	if resp.Truncated() {
		log.Warn("salesforce results truncated, further pages are not fetched",
			append(fields, zap.String("next_records_url", resp.NextRecordsUrl))...)
		return
	}
	log.Info("salesforce query returned", fields...)
}

func (d *ActionDispatcher) uploadToGoogleDrive(ctx context.Context, e *execution) error {
	drive, err := e.decision.Selection.GoogleDrive()
	if err != nil {
		return classify(ServiceDecision, err)
	}
	h, err := googledrive.NewUploadHelper(d.httpClient, googledrive.StaticToken(drive.AccessToken), d.driveUploadUrl)
	if err != nil {
		return classify(ServiceGoogleDrive, err)
	}
	raw, err := googledrive.Upload(ctx, h, googledrive.File{
		Name:     *e.params.FileName,
		FolderId: e.params.GoogleDriveFolderId,
		Content:  *e.params.FileContent,
	})
	if err != nil {
		return classify(ServiceGoogleDrive, err)
	}
	return e.setOutput(ServiceGoogleDrive, raw)
}

func (e *execution) setOutput(service string, raw json.RawMessage) error {
	records, err := Records(raw)
	if err != nil {
		return ParseError{Service: service, Err: err}
	}
	e.output = [][]Record{records}
	return nil
}
