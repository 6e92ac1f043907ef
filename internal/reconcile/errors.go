package reconcile

import (
	"errors"

	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

// ErrMultipleMappings is returned when one event source ARN has more than
// one mapping; the reconciler refuses to guess which one to manage.
var ErrMultipleMappings = errors.New("source has multiple event source mappings")

// IsNotFound reports whether err is the remote system's resource-not-found
// signal. Not-found is the only API error treated as a normal condition
// (the resource is absent); everything else propagates to the caller.
func IsNotFound(err error) bool {
	var fnNotFound *lambdatypes.ResourceNotFoundException
	if errors.As(err, &fnNotFound) {
		return true
	}
	var ruleNotFound *eventbridgetypes.ResourceNotFoundException
	if errors.As(err, &ruleNotFound) {
		return true
	}
	var queueGone *sqstypes.QueueDoesNotExist
	if errors.As(err, &queueGone) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException", "AWS.SimpleQueueService.NonExistentQueue", "QueueDoesNotExist":
			return true
		}
	}
	return false
}
