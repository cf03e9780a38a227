package persistence

import (
	"encoding/json"

	"github.com/petrijr/resposta/pkg/api"
)

// workflowPayload is the document-sized remainder of a workflow record:
// the stage outputs that grow as processing runs. The fixed columns
// (ids, state, timestamps) live beside it so stores can filter without
// decoding.
type workflowPayload struct {
	Analysis  *api.RFPAnalysis     `json:"analysis,omitempty"`
	Responses []api.ResponseRecord `json:"responses,omitempty"`
	Review    *api.ReviewResult    `json:"review,omitempty"`
}

// EncodePayload serializes the stage outputs of wf.
func EncodePayload(wf *api.Workflow) ([]byte, error) {
	p := workflowPayload{
		Analysis:  wf.Analysis,
		Responses: wf.Responses,
		Review:    wf.Review,
	}
	if p.Analysis == nil && p.Responses == nil && p.Review == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// DecodePayload restores stage outputs onto wf. Empty input leaves wf
// untouched.
func DecodePayload(data []byte, wf *api.Workflow) error {
	if len(data) == 0 {
		return nil
	}
	var p workflowPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	wf.Analysis = p.Analysis
	wf.Responses = p.Responses
	wf.Review = p.Review
	return nil
}
