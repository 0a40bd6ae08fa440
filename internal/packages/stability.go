package packages

type Stability string

const (
	StabilityStable  Stability = "stable"
	StabilityTesting Stability = "testing"
	StabilityBroken  Stability = "broken"
)

// SelectByStability narrows pkgs to the best stability class available:
// stable if any exist, otherwise testing, otherwise none (broken-only
// candidates are never auto-selected).
func SelectByStability(pkgs []*Package) []*Package {
	if len(pkgs) == 0 {
		return nil
	}

	candidates := make(map[Stability][]*Package)
	for _, pkg := range pkgs {
		s := pkg.Stability()
		candidates[s] = append(candidates[s], pkg)
	}

	if stable := candidates[StabilityStable]; len(stable) > 0 {
		return stable
	}
	if testing := candidates[StabilityTesting]; len(testing) > 0 {
		return testing
	}
	return nil
}
