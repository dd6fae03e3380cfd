package cli

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// seedFile is the YAML layout of --seeds:
//
//	seeds:
//	  - e1: {kind: person, key: alice}
//	    relation: works_at
//	    e2: {kind: org, key: acme}
type seedFile struct {
	Seeds []model.Fact `yaml:"seeds"`
}

// goldFile is the YAML layout of --gold: labeled evidence
type goldFile struct {
	Gold []goldEntry `yaml:"gold"`
}

type goldEntry struct {
	Fact    model.Fact `yaml:"fact"`
	Segment string     `yaml:"segment"`
	O1      int        `yaml:"o1"`
	O2      int        `yaml:"o2"`
	Label   bool       `yaml:"label"`
}

func loadSeeds(path string) ([]model.Fact, error) {
	var f seedFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	if len(f.Seeds) == 0 {
		return nil, errors.Newf("%s holds no seeds", path)
	}
	for i, s := range f.Seeds {
		if s.Relation == "" || s.E1.Kind == "" || s.E1.Key == "" || s.E2.Kind == "" || s.E2.Key == "" {
			return nil, errors.Newf("%s: seed %d is incomplete: %s", path, i+1, s)
		}
	}
	return f.Seeds, nil
}

func loadGold(path string) (*knowledge.Knowledge, error) {
	var f goldFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	gold := knowledge.New()
	for i, g := range f.Gold {
		if g.Segment == "" {
			return nil, errors.Newf("%s: gold entry %d has no segment", path, i+1)
		}
		e := model.NewEvidence(g.Fact, model.SegmentID(g.Segment), g.O1, g.O2)
		gold.Set(e, model.Label(g.Label))
	}
	return gold, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}
