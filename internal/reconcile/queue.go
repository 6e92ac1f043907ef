package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/lamctl/lamctl/internal/ir"
	"github.com/lamctl/lamctl/internal/logging"
)

// QueueReconciler converges an SQS FIFO queue. The queue attribute API is
// string typed, so desired integer values are rendered as decimal strings
// both for comparison and for submission.
type QueueReconciler struct {
	SQS       QueueAPI
	CheckMode bool
}

func NewQueueReconciler(api QueueAPI, checkMode bool) *QueueReconciler {
	return &QueueReconciler{SQS: api, CheckMode: checkMode}
}

func (r *QueueReconciler) Present(ctx context.Context, queue *ir.FifoQueue) (bool, error) {
	requested := requestedAttributes(queue)

	queueURL, err := r.getQueueURL(ctx, queue.Name)
	if err != nil {
		return false, err
	}

	if queueURL == "" {
		logging.Debug("creating queue", "name", queue.Name, "check_mode", r.CheckMode)
		if !r.CheckMode {
			attributes := map[string]string{"FifoQueue": "true"}
			for key, value := range requested {
				attributes[key] = value
			}
			_, err := r.SQS.CreateQueue(ctx, &sqs.CreateQueueInput{
				QueueName:  aws.String(queue.Name),
				Attributes: attributes,
			})
			if err != nil {
				return false, fmt.Errorf("creating queue %s: %w", queue.Name, err)
			}
		}
		return true, nil
	}

	out, err := r.SQS.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		return false, fmt.Errorf("fetching attributes of queue %s: %w", queue.Name, err)
	}

	drifted := false
	for key, value := range requested {
		if out.Attributes[key] != value {
			drifted = true
			break
		}
	}
	if !drifted {
		return false, nil
	}

	if !r.CheckMode {
		_, err := r.SQS.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
			QueueUrl:   aws.String(queueURL),
			Attributes: requested,
		})
		if err != nil {
			return false, fmt.Errorf("updating attributes of queue %s: %w", queue.Name, err)
		}
	}
	logging.Info("updated queue attributes", "name", queue.Name, "check_mode", r.CheckMode)
	return true, nil
}

func (r *QueueReconciler) Absent(ctx context.Context, queue *ir.FifoQueue) (bool, error) {
	queueURL, err := r.getQueueURL(ctx, queue.Name)
	if err != nil {
		return false, err
	}
	if queueURL == "" {
		return false, nil
	}
	if !r.CheckMode {
		_, err := r.SQS.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(queueURL)})
		if err != nil {
			return false, fmt.Errorf("deleting queue %s: %w", queue.Name, err)
		}
	}
	logging.Info("deleted queue", "name", queue.Name, "check_mode", r.CheckMode)
	return true, nil
}

// getQueueURL resolves the queue by name; empty means it does not exist.
func (r *QueueReconciler) getQueueURL(ctx context.Context, name string) (string, error) {
	out, err := r.SQS.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("fetching queue %s: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

func requestedAttributes(queue *ir.FifoQueue) map[string]string {
	return map[string]string{
		"MessageRetentionPeriod": strconv.Itoa(queue.MessageRetentionPeriod),
		"VisibilityTimeout":      strconv.Itoa(queue.VisibilityTimeout),
	}
}
