package httpconn

import "testing"

func TestResolveStaticPathRejectsTraversal(t *testing.T) {
	root := "/srv/www"
	if _, err := resolveStaticPath(root, "/../../etc/passwd"); err != ErrForbidden {
		t.Errorf("expected ErrForbidden for traversal, got %v", err)
	}
}

func TestResolveStaticPathAllowsPlainFile(t *testing.T) {
	root := "/srv/www"
	got, err := resolveStaticPath(root, "/index.html")
	if err != nil {
		t.Fatalf("resolveStaticPath: %v", err)
	}
	want := "/srv/www/index.html"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestResolveStaticPathAllowsNestedDir(t *testing.T) {
	root := "/srv/www"
	got, err := resolveStaticPath(root, "/assets/style.css")
	if err != nil {
		t.Fatalf("resolveStaticPath: %v", err)
	}
	want := "/srv/www/assets/style.css"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOpenStaticFileMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := openStaticFile(dir + "/nope.html"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenStaticFileDirectoryReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := openStaticFile(dir); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for a directory, got %v", err)
	}
}
