package scenario

import _ "embed"

//go:embed data/a6_landlord_tenant_tree.yaml
var defaultScenarioYAML []byte

// DefaultBranchLabel is the branch exercised when no label is configured.
const DefaultBranchLabel = "ask_for_guidance"

// Default returns the embedded landlord/tenant deposit scenario. The
// asset goes through the same validation as a file-loaded tree, so an
// error here means the shipped scenario itself is broken.
func Default() (*Tree, error) {
	return Parse(defaultScenarioYAML)
}
