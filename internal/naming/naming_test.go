package naming

import "testing"

func TestCheckCategory(t *testing.T) {
	for _, valid := range []string{"app-misc", "dev-libs", "x11-base", "chromeos-base"} {
		if err := CheckCategory(valid); err != nil {
			t.Errorf("CheckCategory(%q) = %v, want nil", valid, err)
		}
	}
	for _, invalid := range []string{"", "/bad", "has space"} {
		if err := CheckCategory(invalid); err == nil {
			t.Errorf("CheckCategory(%q) = nil, want error", invalid)
		}
	}
}

func TestCheckPackage(t *testing.T) {
	for _, valid := range []string{"widget", "lib-foo", "foo_bar"} {
		if err := CheckPackage(valid); err != nil {
			t.Errorf("CheckPackage(%q) = %v, want nil", valid, err)
		}
	}
	// A name that looks like it already carries a version suffix is
	// rejected, since atom parsing couldn't tell where the name ends.
	if err := CheckPackage("widget-1.0"); err == nil {
		t.Error("CheckPackage(\"widget-1.0\") = nil, want error (looks version-suffixed)")
	}
}

func TestCheckCategoryAndPackage(t *testing.T) {
	if err := CheckCategoryAndPackage("app-misc/widget"); err != nil {
		t.Errorf("CheckCategoryAndPackage() = %v, want nil", err)
	}
	for _, invalid := range []string{"nosep", "app-misc/widget-1.0", "/widget"} {
		if err := CheckCategoryAndPackage(invalid); err == nil {
			t.Errorf("CheckCategoryAndPackage(%q) = nil, want error", invalid)
		}
	}
}
