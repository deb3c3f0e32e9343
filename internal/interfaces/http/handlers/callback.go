package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/infrastructure/logging"
	"github.com/bivex/iab-client/internal/interfaces/http/response"
)

// ResultSink receives confirmation results. *processor.Processor
// implements it.
type ResultSink interface {
	HandleResult(requestCode, resultCode int, data bundle.Bundle) bool
	DiscardFlow() bool
}

// CallbackHandler handles the daemon's confirmation callbacks
type CallbackHandler struct {
	sink ResultSink
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(sink ResultSink) *CallbackHandler {
	return &CallbackHandler{sink: sink}
}

// Result delivers the outcome of a confirmation screen.
//
// Body: {"requestCode": 1001, "resultCode": -1, "data": {...}}. A missing or
// null data object is passed on as an absent payload.
func (h *CallbackHandler) Result(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(raw) {
		response.BadRequest(c, "body must be a JSON object")
		return
	}

	requestCode := gjson.GetBytes(raw, "requestCode")
	resultCode := gjson.GetBytes(raw, "resultCode")
	if requestCode.Type != gjson.Number || resultCode.Type != gjson.Number {
		response.BadRequest(c, "requestCode and resultCode are required")
		return
	}

	var data bundle.Bundle
	if field := gjson.GetBytes(raw, "data"); field.IsObject() {
		data, err = bundle.FromJSON([]byte(field.Raw))
		if err != nil {
			response.BadRequest(c, "invalid data: "+err.Error())
			return
		}
	}

	handled := h.sink.HandleResult(int(requestCode.Int()), int(resultCode.Int()), data)
	logging.GetLogger(c).Info("Confirmation result received",
		zap.Int64("request_code", requestCode.Int()),
		zap.Int64("result_code", resultCode.Int()),
		zap.Bool("handled", handled),
	)
	if !handled {
		response.NotFound(c, "no purchase flow waits for this request code")
		return
	}
	response.OK(c, gin.H{"handled": true})
}

// Discard reports that the confirmation screen went away without a result.
func (h *CallbackHandler) Discard(c *gin.Context) {
	if !h.sink.DiscardFlow() {
		response.NotFound(c, "no purchase flow to discard")
		return
	}
	response.OK(c, gin.H{"discarded": true})
}
