package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one end-to-end smartlog test: a sequence of repository
// operations driven through the same ingestion paths the git hooks use,
// followed by a render whose output is compared against a golden file.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MainBranch overrides the configured main branch. Defaults to
	// "master".
	MainBranch string `yaml:"main_branch,omitempty"`

	// Flags selects the render variant.
	Flags Flags `yaml:"flags,omitempty"`

	// Steps contains the repository operations, executed in order.
	Steps []Step `yaml:"steps"`
}

// Flags mirrors the smartlog command's flags.
type Flags struct {
	// Hidden includes hidden commits, labeled with their reason.
	Hidden bool `yaml:"hidden,omitempty"`

	// OnlyBranches foregrounds only commits with a branch (or HEAD).
	OnlyBranches bool `yaml:"only_branches,omitempty"`
}

// Step is one repository operation. Exactly one field must be set.
//
// Commit ids in steps are short hex tokens (typically eight characters);
// the harness pads them to full width so golden files stay readable.
type Step struct {
	// Commit creates a commit and advances HEAD, firing the post-commit
	// ingestion path.
	Commit *CommitStep `yaml:"commit,omitempty"`

	// Checkout moves HEAD to a branch (attached) or commit (detached),
	// firing the post-checkout path.
	Checkout *CheckoutStep `yaml:"checkout,omitempty"`

	// Branch creates, moves, or deletes a branch, firing the
	// reference-transaction path.
	Branch *BranchStep `yaml:"branch,omitempty"`

	// Amend replaces a commit in place, firing post-commit then
	// post-rewrite, the order git runs them in.
	Amend *AmendStep `yaml:"amend,omitempty"`

	// Rebase replays a stack onto a new base, firing one post-rewrite
	// with all pairs.
	Rebase *RebaseStep `yaml:"rebase,omitempty"`

	// Hide records hide events for the named commits in one transaction.
	Hide []string `yaml:"hide,omitempty"`

	// Unhide records unhide events for the named commits in one
	// transaction.
	Unhide []string `yaml:"unhide,omitempty"`
}

// CommitStep creates one commit.
type CommitStep struct {
	// ID is the short id of the new commit.
	ID string `yaml:"id"`

	// Summary is the first line of the commit message.
	Summary string `yaml:"summary"`

	// Parents overrides the default single parent (the current HEAD).
	// Two entries make a merge commit.
	Parents []string `yaml:"parents,omitempty"`
}

// CheckoutStep moves HEAD.
type CheckoutStep struct {
	// Target is a branch name (attached checkout) or a commit id
	// (detached).
	Target string `yaml:"target"`
}

// BranchStep changes one branch ref.
type BranchStep struct {
	Name string `yaml:"name"`

	// Target is the commit the branch points at after the step. Required
	// unless Delete is set.
	Target string `yaml:"target,omitempty"`

	// Remote marks a remote-tracking branch; Name then uses the
	// "origin/x" form.
	Remote bool `yaml:"remote,omitempty"`

	// Delete removes the branch instead of moving it.
	Delete bool `yaml:"delete,omitempty"`
}

// AmendStep replaces one commit. The replacement keeps the original's
// parents.
type AmendStep struct {
	Old     string `yaml:"old"`
	ID      string `yaml:"id"`
	Summary string `yaml:"summary"`
}

// RebaseStep replays a stack of commits onto a new base.
type RebaseStep struct {
	// Onto is the new base commit or branch.
	Onto string `yaml:"onto"`

	// Pairs maps each original commit to its replacement, base first.
	// Replacement parents chain: the first replays onto Onto, each
	// subsequent one onto the previous replacement.
	Pairs []RebasePair `yaml:"pairs"`
}

// RebasePair is one old/new mapping within a rebase.
type RebasePair struct {
	Old     string `yaml:"old"`
	ID      string `yaml:"id"`
	Summary string `yaml:"summary"`
}

// LoadScenario reads and parses a scenario YAML file. Returns an error if
// the file doesn't exist, is malformed, contains unknown fields (typos),
// or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks that exactly one operation is set and its required
// fields are present.
func validateStep(index int, step *Step) error {
	set := 0
	if step.Commit != nil {
		set++
		if step.Commit.ID == "" {
			return fmt.Errorf("steps[%d].commit: id is required", index)
		}
		if step.Commit.Summary == "" {
			return fmt.Errorf("steps[%d].commit: summary is required", index)
		}
	}
	if step.Checkout != nil {
		set++
		if step.Checkout.Target == "" {
			return fmt.Errorf("steps[%d].checkout: target is required", index)
		}
	}
	if step.Branch != nil {
		set++
		if step.Branch.Name == "" {
			return fmt.Errorf("steps[%d].branch: name is required", index)
		}
		if !step.Branch.Delete && step.Branch.Target == "" {
			return fmt.Errorf("steps[%d].branch: target is required unless delete is set", index)
		}
	}
	if step.Amend != nil {
		set++
		if step.Amend.Old == "" || step.Amend.ID == "" {
			return fmt.Errorf("steps[%d].amend: old and id are required", index)
		}
	}
	if step.Rebase != nil {
		set++
		if step.Rebase.Onto == "" {
			return fmt.Errorf("steps[%d].rebase: onto is required", index)
		}
		if len(step.Rebase.Pairs) == 0 {
			return fmt.Errorf("steps[%d].rebase: pairs list is required and must be non-empty", index)
		}
		for j, pair := range step.Rebase.Pairs {
			if pair.Old == "" || pair.ID == "" {
				return fmt.Errorf("steps[%d].rebase.pairs[%d]: old and id are required", index, j)
			}
		}
	}
	if len(step.Hide) > 0 {
		set++
	}
	if len(step.Unhide) > 0 {
		set++
	}

	if set == 0 {
		return fmt.Errorf("steps[%d]: empty step", index)
	}
	if set > 1 {
		return fmt.Errorf("steps[%d]: exactly one operation per step", index)
	}
	return nil
}
