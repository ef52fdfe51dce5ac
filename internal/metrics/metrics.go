package metrics

import (
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Forwarding outcomes reported per inbound message.
const (
	OutcomeDelivered         = "delivered"          // Message posted to the destination endpoint.
	OutcomeNoRoute           = "no_route"           // Origin has no routing entry, message dropped.
	OutcomeMalformedOrigin   = "malformed_origin"   // No group id could be derived, message discarded.
	OutcomeDeliveryFailed    = "delivery_failed"    // All delivery attempts failed, message dropped.
	OutcomeAttachmentDropped = "attachment_dropped" // One attachment was dropped, message still sent.
)

// Metrics defines the contract for reporting pipeline events
type Metrics interface {
	LogEvent(eventName string, tags map[string]string, fields map[string]interface{})
	ForwardEvent(outcome string, chatID int64, fields map[string]interface{})
	Close()
}

type metricsImpl struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPI
	org         string
	bucket      string
	defaultTags map[string]string // Constant tags, like bot ID
}

// Ensure metricsImpl implements Metrics
var _ Metrics = (*metricsImpl)(nil)

// NewMetricsImpl initializes the reporter with constant tags like bot ID
func NewMetricsImpl(url string, token string, org string, bucket string, defaultTags map[string]string) Metrics {
	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPI(org, bucket)
	return &metricsImpl{
		client:      client,
		writeAPI:    writeAPI,
		org:         org,
		bucket:      bucket,
		defaultTags: defaultTags,
	}
}

// Universal method to log an event with customizable tags and fields
func (this *metricsImpl) LogEvent(eventName string, tags map[string]string, fields map[string]interface{}) {
	if len(fields) == 0 {
		return
	}

	point := influxdb2.NewPointWithMeasurement("forward_event").
		AddTag("event", eventName).
		SetTime(time.Now())

	// Add constant default tags
	for key, value := range this.defaultTags {
		point.AddTag(key, value)
	}

	// Add custom tags
	for key, value := range tags {
		point.AddTag(key, value)
	}

	// Add custom fields
	for key, value := range fields {
		point.AddField(key, value)
	}

	this.writeAPI.WritePoint(point)
}

// ForwardEvent reports one per-message pipeline outcome tagged by source
// chat. Outcomes with no derivable chat id still count, untagged.
func (this *metricsImpl) ForwardEvent(outcome string, chatID int64, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}

	// The collector rejects points without a single field.
	if _, ok := fields["count"]; !ok {
		fields["count"] = 1
	}

	this.LogEvent(outcome, chatTags(chatID), fields)
}

// Close flushes the write API and closes the client
func (this *metricsImpl) Close() {
	this.writeAPI.Flush()
	this.client.Close()
}

// chatTags builds the per-chat tag set; a zero chat id yields no tags.
func chatTags(chatID int64) map[string]string {
	if chatID == 0 {
		return nil
	}

	return map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
	}
}
