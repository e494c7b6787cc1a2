package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Workflow histories are kept long enough to inspect a week of cycles.
const namespaceRetention = 7 * 24 * time.Hour

// EnsureNamespace registers the namespace the worker runs in, treating an
// existing one as success.
func EnsureNamespace(ctx context.Context, cli workflowservice.WorkflowServiceClient, namespace string) error {
	if namespace == "" {
		namespace = "default"
	}

	_, err := cli.RegisterNamespace(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        namespace,
		Description:                      "podwatch update cycles",
		WorkflowExecutionRetentionPeriod: durationpb.New(namespaceRetention),
	})
	var alreadyErr *serviceerror.NamespaceAlreadyExists
	if errors.As(err, &alreadyErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error registering namespace %q: %s", namespace, err)
	}

	return nil
}
