package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

const maxSaveResponseBytes = 1 << 20

// saveResponse is the record service's reply to a POST
type saveResponse struct {
	ID json.RawMessage `json:"flw_id"`
}

// HTTPRecordStore saves records by POSTing them as JSON to a record service
type HTTPRecordStore struct {
	client   *http.Client
	endpoint string
	log      *logrus.Entry
}

// NewHTTPRecordStore creates a store posting to endpoint
func NewHTTPRecordStore(client *http.Client, endpoint string, log *logrus.Entry) *HTTPRecordStore {
	return &HTTPRecordStore{client: client, endpoint: endpoint, log: log}
}

// Save implements RecordStore. The service must answer 2xx with {"flw_id": ...};
// string and numeric identifiers are both accepted.
func (s *HTTPRecordStore) Save(ctx context.Context, rec *models.Record) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %w: encoding record JSON for %s: %w", utils.ErrSave, utils.ErrParsing, rec.Source, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", utils.ErrSave, utils.ErrRequestCreation, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	reqLog := s.log.WithFields(logrus.Fields{"request_id": requestID, "source": rec.Source})

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w: posting to %s: %w", utils.ErrSave, utils.ErrTransport, s.endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxSaveResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", utils.ErrSave, utils.ErrResponseBodyRead, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqLog.WithField("status_code", resp.StatusCode).Warn("Record service rejected record")
		return "", fmt.Errorf("%w: record service returned status %d: %s", utils.ErrSave, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded saveResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("%w: %w: decoding save response JSON: %w", utils.ErrSave, utils.ErrParsing, err)
	}
	id, err := recordID(decoded.ID)
	if err != nil {
		return "", err
	}

	reqLog.WithField("record_id", id).Debug("Record saved")
	return id, nil
}

// recordID converts the raw flw_id value into a string identifier
func recordID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("%w: save response has no flw_id", utils.ErrSave)
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: save response has empty flw_id", utils.ErrSave)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: unsupported flw_id value %s", utils.ErrSave, string(trimmed))
}

// Close implements RecordStore. The HTTP client is shared and left open.
func (s *HTTPRecordStore) Close() error {
	return nil
}
