package reconcile

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/logging"
)

// EventSourceReconciler converges the SQS event source mapping feeding a
// Lambda function. One source ARN is expected to carry at most one mapping;
// the reconciler refuses to act when it finds more.
type EventSourceReconciler struct {
	Lambda    EventSourceAPI
	CheckMode bool
	ReadyWait WaitPolicy
}

func NewEventSourceReconciler(api EventSourceAPI, checkMode bool) *EventSourceReconciler {
	return &EventSourceReconciler{Lambda: api, CheckMode: checkMode, ReadyWait: DefaultReadyWait}
}

func (r *EventSourceReconciler) Present(ctx context.Context, es *ir.EventSource) (bool, error) {
	mapping, err := r.findMapping(ctx, es.SourceArn)
	if err != nil {
		return false, err
	}

	if mapping == nil {
		logging.Debug("creating event source mapping", "source", es.SourceArn, "check_mode", r.CheckMode)
		if !r.CheckMode {
			_, err := r.Lambda.CreateEventSourceMapping(ctx, &lambda.CreateEventSourceMappingInput{
				EventSourceArn: aws.String(es.SourceArn),
				FunctionName:   aws.String(es.FunctionArn),
				BatchSize:      aws.Int32(int32(es.BatchSize)),
			})
			if err != nil {
				return false, fmt.Errorf("creating event source mapping for %s: %w", es.SourceArn, err)
			}
		}
		return true, nil
	}

	if aws.ToString(mapping.FunctionArn) == es.FunctionArn &&
		aws.ToInt32(mapping.BatchSize) == int32(es.BatchSize) {
		return false, nil
	}

	if !r.CheckMode {
		// A mapping mid-transition rejects updates; wait for it to settle
		// first. The wait may give up while the mapping is still
		// transitioning, in which case the update proceeds regardless.
		mapping, err = r.waitReady(ctx, mapping)
		if err != nil {
			return false, err
		}
		_, err := r.Lambda.UpdateEventSourceMapping(ctx, &lambda.UpdateEventSourceMappingInput{
			UUID:         mapping.UUID,
			FunctionName: aws.String(es.FunctionArn),
			BatchSize:    aws.Int32(int32(es.BatchSize)),
		})
		if err != nil {
			return false, fmt.Errorf("updating event source mapping %s: %w", aws.ToString(mapping.UUID), err)
		}
	}
	logging.Info("updated event source mapping", "source", es.SourceArn, "check_mode", r.CheckMode)
	return true, nil
}

func (r *EventSourceReconciler) Absent(ctx context.Context, es *ir.EventSource) (bool, error) {
	mapping, err := r.findMapping(ctx, es.SourceArn)
	if err != nil {
		return false, err
	}
	if mapping == nil {
		return false, nil
	}

	mapping, err = r.waitReady(ctx, mapping)
	if err != nil {
		if IsNotFound(err) {
			// Disappeared while waiting: already absent.
			return false, nil
		}
		return false, err
	}

	if !r.CheckMode {
		_, err := r.Lambda.DeleteEventSourceMapping(ctx, &lambda.DeleteEventSourceMappingInput{
			UUID: mapping.UUID,
		})
		if err != nil {
			return false, fmt.Errorf("deleting event source mapping %s: %w", aws.ToString(mapping.UUID), err)
		}
	}
	logging.Info("deleted event source mapping", "source", es.SourceArn, "check_mode", r.CheckMode)
	return true, nil
}

// findMapping returns the single mapping for the source ARN, nil when none
// exists, and ErrMultipleMappings when the source has more than one.
func (r *EventSourceReconciler) findMapping(ctx context.Context, sourceArn string) (*lambdatypes.EventSourceMappingConfiguration, error) {
	out, err := r.Lambda.ListEventSourceMappings(ctx, &lambda.ListEventSourceMappingsInput{
		EventSourceArn: aws.String(sourceArn),
		MaxItems:       aws.Int32(2),
	})
	if err != nil {
		return nil, fmt.Errorf("listing event source mappings for %s: %w", sourceArn, err)
	}
	switch len(out.EventSourceMappings) {
	case 0:
		return nil, nil
	case 1:
		mapping := out.EventSourceMappings[0]
		return &mapping, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrMultipleMappings, sourceArn)
	}
}

// waitReady polls until the mapping state reaches Enabled or Disabled. The
// attempt budget is deliberately allowed to run out without failing; the
// returned mapping may then still be transitioning.
func (r *EventSourceReconciler) waitReady(ctx context.Context, mapping *lambdatypes.EventSourceMappingConfiguration) (*lambdatypes.EventSourceMappingConfiguration, error) {
	return WaitUntilLast(ctx, r.ReadyWait, mapping,
		func(ctx context.Context) (*lambdatypes.EventSourceMappingConfiguration, error) {
			out, err := r.Lambda.GetEventSourceMapping(ctx, &lambda.GetEventSourceMappingInput{
				UUID: mapping.UUID,
			})
			if err != nil {
				return nil, err
			}
			return &lambdatypes.EventSourceMappingConfiguration{
				UUID:           out.UUID,
				State:          out.State,
				BatchSize:      out.BatchSize,
				FunctionArn:    out.FunctionArn,
				EventSourceArn: out.EventSourceArn,
			}, nil
		},
		func(m *lambdatypes.EventSourceMappingConfiguration) bool {
			state := aws.ToString(m.State)
			return state == "Enabled" || state == "Disabled"
		},
	)
}
