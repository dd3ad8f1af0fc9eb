package process

import (
	"fmt"
	"strings"

	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

// MaxLabelSteps bounds the label grouping loop
const MaxLabelSteps = 100

func isLabel(fragment string) bool {
	return strings.HasSuffix(fragment, ":")
}

// GroupLabels turns a flat list of cleaned fragments into label groups.
// A fragment ending in ':' starts a group keyed by the fragment without the colon;
// the fragments up to the next label are its values. A repeated label replaces
// the earlier group. A leading non-label fragment does not move the cursor, so
// such input fails with ErrMalformedInput once MaxLabelSteps is reached.
// At most MaxLabelSteps groups are accepted.
func GroupLabels(fragments []string) (*models.LabelGroup, error) {
	group := models.NewLabelGroup()
	cursor := 0
	for steps := 0; cursor < len(fragments); steps++ {
		if steps >= MaxLabelSteps {
			return nil, fmt.Errorf("%w: no termination after %d steps at fragment %d %q",
				utils.ErrMalformedInput, MaxLabelSteps, cursor, fragments[cursor])
		}

		if !isLabel(fragments[cursor]) {
			if cursor == len(fragments)-1 {
				break
			}
			continue
		}

		key := strings.TrimSuffix(fragments[cursor], ":")
		cursor++
		values := []string{}
		for cursor < len(fragments) && !isLabel(fragments[cursor]) {
			values = append(values, fragments[cursor])
			cursor++
		}
		group.Set(key, values)
	}
	return group, nil
}
