package dataset

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retrieval-cli/internal/model"
)

// LoadGroundTruth reads a ground-truth map keyed by deal_id. Used only by
// the benchmark report; the pipeline itself never sees it.
func LoadGroundTruth(path string) (model.GroundTruth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read ground truth")
	}

	var gt model.GroundTruth
	if err := json.Unmarshal(data, &gt); err != nil {
		return nil, eris.Wrap(err, "dataset: parse ground truth")
	}

	return gt, nil
}
