package governance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jvs-project/warden/internal/review"
	"github.com/jvs-project/warden/pkg/errclass"
	"github.com/jvs-project/warden/pkg/model"
	"github.com/jvs-project/warden/pkg/pathutil"
	"github.com/jvs-project/warden/pkg/uuidutil"
)

// AnonymousActor is recorded when the host supplies no actor id.
const AnonymousActor = "anonymous"

// DefaultUnitPrefix names the review unit raised when a completion claim
// does not say which units it covers.
const DefaultUnitPrefix = "changeset:"

// Messages returned to the host.
const (
	MessageUnrecognized = "unrecognized event ignored"
	unloggedFlag        = "[unlogged]"
	redactedPayload     = "[private]"
)

// DispatchResult is what the host sees: an exit code, a severity and a
// human-readable message.
type DispatchResult struct {
	EventID  string          `json:"event_id"`
	Kind     model.EventKind `json:"kind"`
	ExitCode int             `json:"exit_code"`
	Severity model.Severity  `json:"severity"`
	Message  string          `json:"message"`
	Intent   model.IntentTag `json:"intent,omitempty"`
	// Unlogged is set when the command entry for this event could not be
	// written to the ledger.
	Unlogged bool     `json:"unlogged,omitempty"`
	Pending  []string `json:"pending,omitempty"`
}

// Dispatcher routes one hook event through the components.
type Dispatcher struct {
	g *GovernanceContext
}

// NewDispatcher creates a dispatcher over g.
func NewDispatcher(g *GovernanceContext) *Dispatcher {
	return &Dispatcher{g: g}
}

// Dispatch handles ev. It always records one command entry first, then runs
// the handler for ev.Kind. Internal failures never block the host unless
// quality.block-on-failure is set, in which case they exit with
// ExitInternal. Only a review policy outcome exits with ExitBlocked.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.HookEvent) DispatchResult {
	ev = d.normalize(ev)
	log := d.g.Logger.WithFields(map[string]any{"event_id": ev.ID, "kind": string(ev.Kind), "actor": ev.ActorID})

	res := DispatchResult{
		EventID:  ev.ID,
		Kind:     ev.Kind,
		ExitCode: model.ExitOK,
		Severity: model.SeverityNone,
	}

	private, note := d.privateNote(ev)
	if ev.Kind == model.EventPrompt || ev.Kind == model.EventResponse {
		res.Intent = d.g.Classifier.Classify(ev.Payload)
		if private {
			res.Intent = model.IntentNeutral
		}
	}

	if err := d.g.Ledger.Append(ctx, commandEntry(ev, res.Intent, private)); err != nil {
		log.ErrorErr("command entry not recorded", err)
		res.Unlogged = true
	}

	var err error
	switch ev.Kind {
	case model.EventPrompt:
		err = d.handlePrompt(ctx, ev, private, note, &res)
	case model.EventToolUse:
		err = d.handleToolUse(ctx, ev, &res)
	case model.EventResponse:
		err = d.handleResponse(ctx, ev, &res)
	default:
		cfgErr := errclass.ErrEventUnknown.WithMessagef("event kind %q", ev.Kind)
		log.ErrorErr("configuration error", cfgErr)
		d.recordError(ctx, ev, "dispatcher", cfgErr)
		res.Message = MessageUnrecognized
		return finish(res)
	}

	if err != nil {
		log.ErrorErr("handler failed", err)
		d.recordError(ctx, ev, string(ev.Kind), err)
		if d.g.Config.Quality.BlockOnFailure {
			res.ExitCode = model.ExitInternal
			res.Severity = model.SeverityBlock
			res.Message = fmt.Sprintf("internal error handling %s event: %v (policy %s=true)", ev.Kind, err, review.PolicyKey)
		} else if res.Severity != model.SeverityBlock {
			if res.Severity == model.SeverityNone {
				res.Severity = model.SeverityWarn
			}
			res.Message = joinMessage(res.Message, fmt.Sprintf("internal error ignored: %v", err))
		}
	}
	return finish(res)
}

func finish(res DispatchResult) DispatchResult {
	if res.Message == "" {
		res.Message = "ok"
	}
	if res.Unlogged {
		res.Message += " " + unloggedFlag
	}
	return res
}

func (d *Dispatcher) normalize(ev model.HookEvent) model.HookEvent {
	if ev.ID == "" {
		ev.ID = uuidutil.NewV7()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.g.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	ev.ActorID = pathutil.NormalizeActorID(ev.ActorID)
	if ev.ActorID == "" {
		ev.ActorID = AnonymousActor
	}
	return ev
}

// privateNote reports whether ev is a prompt carrying the private prefix,
// and returns the note text without the prefix.
func (d *Dispatcher) privateNote(ev model.HookEvent) (bool, string) {
	prefix := d.g.Config.Ledger.PrivatePrefix
	if ev.Kind != model.EventPrompt || prefix == "" {
		return false, ""
	}
	text := strings.TrimSpace(ev.Payload)
	if !strings.HasPrefix(text, prefix) {
		return false, ""
	}
	return true, strings.TrimSpace(strings.TrimPrefix(text, prefix))
}

func commandEntry(ev model.HookEvent, tag model.IntentTag, private bool) model.LedgerEntry {
	fields := map[string]string{
		"event": string(ev.Kind),
		"id":    ev.ID,
	}
	if ev.Payload != "" {
		fields["payload"] = ev.Payload
		if private {
			fields["payload"] = redactedPayload
		}
	}
	if tag != "" {
		fields["intent"] = string(tag)
	}
	if ev.ToolName != "" {
		fields["tool"] = ev.ToolName
	}
	if ev.TargetPath != "" {
		fields["target"] = ev.TargetPath
	}
	if len(ev.Units) > 0 {
		fields["units"] = strings.Join(ev.Units, ",")
	}
	if ev.Coverage != nil {
		fields["coverage"] = fmt.Sprintf("%d", *ev.Coverage)
	}
	return model.LedgerEntry{Time: ev.Timestamp, Kind: model.EntryCommand, ActorID: ev.ActorID, Fields: fields}
}

func (d *Dispatcher) handlePrompt(ctx context.Context, ev model.HookEvent, private bool, note string, res *DispatchResult) error {
	var errs []error
	if private {
		entry := model.LedgerEntry{
			Time:    ev.Timestamp,
			Kind:    model.EntryPrivate,
			ActorID: ev.ActorID,
			Fields:  map[string]string{"note": note},
		}
		if err := d.g.Ledger.Append(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("private note: %w", err))
		} else {
			res.Message = "private note recorded"
		}
	}
	if _, err := d.g.Sessions.Touch(ctx, ev.ActorID); err != nil {
		errs = append(errs, fmt.Errorf("touch session: %w", err))
	}
	if res.Message == "" {
		res.Message = fmt.Sprintf("prompt recorded (intent %s)", res.Intent)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) handleToolUse(ctx context.Context, ev model.HookEvent, res *DispatchResult) error {
	var errs []error
	if _, err := d.g.Sessions.Touch(ctx, ev.ActorID); err != nil {
		errs = append(errs, fmt.Errorf("touch session: %w", err))
	}

	batch := d.g.Backups.NewBatch()
	rec, err := d.g.Tracker.RecordToolUse(ctx, batch, ev.ActorID, ev.ToolName, ev.TargetPath)
	if err != nil {
		errs = append(errs, err)
	}
	switch rec.Outcome {
	case model.OutcomeSnapshot:
		res.Message = fmt.Sprintf("%s recorded; snapshot taken of %s", ev.ToolName, ev.TargetPath)
	case model.OutcomeSnapshotFailed:
		res.Message = fmt.Sprintf("%s recorded; snapshot of %s failed (not blocking)", ev.ToolName, ev.TargetPath)
	default:
		res.Message = fmt.Sprintf("%s recorded", ev.ToolName)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) handleResponse(ctx context.Context, ev model.HookEvent, res *DispatchResult) error {
	policy := d.g.Config.Policy()
	tag, keyword := d.g.Classifier.ClassifyMatch(ev.Payload)
	res.Intent = tag
	completion := tag == model.IntentCompletion

	var errs []error
	if completion && policy.AutoReview {
		reason := completionReason(keyword, ev.Coverage, policy.CoverageMinimum)
		for _, unit := range d.unitsFor(ev) {
			added, err := d.g.Reviews.Raise(ctx, unit, ev.ActorID, reason)
			if err != nil {
				errs = append(errs, fmt.Errorf("raise review for %s: %w", unit, err))
				continue
			}
			if added {
				d.g.Logger.Info("review raised", map[string]any{"unit": unit, "actor": ev.ActorID})
			}
		}
	}

	// Every response re-surfaces the queue so a stale unit cannot be
	// bypassed by a later completion claim.
	pending, err := d.g.Reviews.ListPending(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list pending reviews: %w", err))
		return errors.Join(errs...)
	}
	verdict := review.Evaluate(pending, completion, policy)
	res.Pending = review.UnitIDs(pending)
	res.Severity = verdict.Severity
	res.ExitCode = verdict.ExitCode
	res.Message = verdict.Message
	if res.Message == "" {
		res.Message = fmt.Sprintf("response recorded (intent %s)", tag)
	}
	return errors.Join(errs...)
}

// unitsFor names the units a completion claim covers: the event's explicit
// units, else the files the actor modified since its session started, else
// the actor's changeset.
func (d *Dispatcher) unitsFor(ev model.HookEvent) []string {
	var units []string
	for _, u := range ev.Units {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	if len(units) > 0 {
		return units
	}
	if paths := d.modifiedPaths(ev.ActorID); len(paths) > 0 {
		return paths
	}
	return []string{DefaultUnitPrefix + ev.ActorID}
}

func (d *Dispatcher) modifiedPaths(actorID string) []string {
	s, err := d.g.Sessions.Get(actorID)
	if err != nil {
		d.g.Logger.ErrorErr("session unreadable; reviewing changeset", err, map[string]any{"actor": actorID})
		return nil
	}
	if s == nil {
		return nil
	}
	paths, err := d.g.Tracker.ModifiedPaths(actorID, s.StartedAt)
	if err != nil {
		d.g.Logger.ErrorErr("usage log unreadable; reviewing changeset", err, map[string]any{"actor": actorID})
		return nil
	}
	return paths
}

func completionReason(keyword string, coverage *int, minimum int) string {
	reason := fmt.Sprintf("completion claimed (matched %q)", keyword)
	if coverage != nil && *coverage < minimum {
		reason += fmt.Sprintf("; coverage %d%% below review-threshold %d%%", *coverage, minimum)
	}
	return reason
}

func (d *Dispatcher) recordError(ctx context.Context, ev model.HookEvent, component string, cause error) {
	entry := model.LedgerEntry{
		Time:    ev.Timestamp,
		Kind:    model.EntryError,
		ActorID: ev.ActorID,
		Fields: map[string]string{
			"component": component,
			"event_id":  ev.ID,
			"error":     cause.Error(),
		},
	}
	if err := d.g.Ledger.Append(ctx, entry); err != nil {
		d.g.Logger.ErrorErr("error entry not recorded", err)
	}
}

func joinMessage(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
