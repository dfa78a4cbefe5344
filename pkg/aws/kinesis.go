// Package aws holds the Kinesis event sink: a Notifier implementation that
// ships the engine's fan-out events downstream for analytics pipelines.
package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/events"
)

type KinesisSink struct {
	client     *kinesis.Kinesis
	streamName string
}

func NewKinesisSink(region, streamName string) *KinesisSink {
	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))

	return &KinesisSink{
		client:     kinesis.New(sess),
		streamName: streamName,
	}
}

// Publish puts one envelope-encoded event onto the Kinesis stream, keyed by
// streamID so per-stream ordering survives sharding.
func (k *KinesisSink) Publish(e events.Event) error {
	data, err := events.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	input := &kinesis.PutRecordInput{
		Data:         data,
		PartitionKey: aws.String(e.StreamID()),
		StreamName:   aws.String(k.streamName),
	}

	result, err := k.client.PutRecord(input)
	if err != nil {
		return fmt.Errorf("failed to put record to Kinesis: %w", err)
	}

	log.Debug().Str("module", "kinesis").Str("event", string(e.Kind())).
		Str("sequence", aws.StringValue(result.SequenceNumber)).Msg("event published")
	return nil
}
