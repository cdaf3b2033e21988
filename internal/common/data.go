package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/models"
)

// queryKeys are the accepted names for the request text, in priority order.
var queryKeys = []string{"query", "text", "request", "url", "errorLog", "question"}

// ExtractDashboardRequest reads a plugin request from a message. A DataPart
// (or a TextPart holding a JSON object) supplies {plugin, query|text|request|url};
// any other non-empty TextPart is taken as the query itself.
func ExtractDashboardRequest(message protocol.Message) (models.DashboardRequest, error) {
	if len(message.Parts) == 0 {
		return models.DashboardRequest{}, errors.New("message has no parts")
	}

	var plain string
	for _, part := range message.Parts {
		// Try DataPart first (value or pointer)
		var dp *protocol.DataPart
		switch v := part.(type) {
		case protocol.DataPart:
			dp = &v
		case *protocol.DataPart:
			dp = v
		}
		if dp != nil {
			raw, err := json.Marshal(dp.Data)
			if err != nil {
				logging.Debugf("Failed to marshal DataPart.Data: %v", err)
				continue
			}
			var dataMap map[string]interface{}
			if err := json.Unmarshal(raw, &dataMap); err == nil {
				if req, err := ExtractFromMap(dataMap); err == nil {
					return req, nil
				}
			}
			continue
		}

		text, ok := textOf(part)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		var dataMap map[string]interface{}
		if err := json.Unmarshal([]byte(text), &dataMap); err == nil {
			if req, err := ExtractFromMap(dataMap); err == nil {
				return req, nil
			}
		}
		if plain == "" {
			plain = strings.TrimSpace(text)
		}
	}

	if plain != "" {
		return models.DashboardRequest{Query: plain}, nil
	}
	return models.DashboardRequest{}, errors.New("could not extract a request from message")
}

// ExtractFromMap reads a plugin request from decoded JSON.
func ExtractFromMap(data map[string]interface{}) (models.DashboardRequest, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	logging.Debugf("Request map contains keys: %s", strings.Join(keys, ", "))

	var req models.DashboardRequest
	q, ok := GetStringValue(data, queryKeys...)
	if !ok || strings.TrimSpace(q) == "" {
		return req, fmt.Errorf("no query found in data (want one of %s)", strings.Join(queryKeys, ", "))
	}
	req.Query = strings.TrimSpace(q)
	if plugin, ok := GetStringValue(data, "plugin", "type"); ok {
		req.Plugin = plugin
	}
	if lang, ok := GetStringValue(data, "language", "lang"); ok {
		req.Language = lang
	}
	if create, ok := data["create"].(bool); ok {
		req.Create = create
	}
	if analyze, ok := data["analyze"].(bool); ok {
		req.Analyze = analyze
	}
	return req, nil
}

func textOf(part protocol.Part) (string, bool) {
	switch v := part.(type) {
	case *protocol.TextPart:
		if v == nil {
			return "", false
		}
		return v.Text, true
	case protocol.TextPart:
		return v.Text, true
	}
	return "", false
}
