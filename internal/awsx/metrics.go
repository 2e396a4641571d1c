package awsx

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics emits fulfillment outcome counters to CloudWatch. Emission is
// best-effort: a metric failure must never fail a purchase.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
}

// NewMetrics returns a Metrics emitter under the given namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		CloudWatch: cw,
		Namespace:  namespace,
	}
}

// CountFulfillment increments the Fulfillment counter for an outcome
// (delivered, delivery_failed, ledger_failed, ...).
func (m *Metrics) CountFulfillment(ctx context.Context, outcome string) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: &m.Namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString("Fulfillment"),
				Value:      awsFloat64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Outcome"), Value: &outcome},
				},
			},
		},
	}
	if _, err := m.CloudWatch.PutMetricData(ctx, input); err != nil {
		log.Printf("put metric data: %v", err)
	}
}

func awsFloat64(f float64) *float64 { return &f }
