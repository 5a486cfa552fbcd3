package synth

import (
	"errors"
	"testing"

	"github.com/projecteru2/cocoon/types"
)

func TestCommandMockMode(t *testing.T) {
	s := New(true, "/opt/tools", "latest")

	argv, err := s.Command(types.VerbBuild, []string{"--release"}, "/sandbox/svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"/opt/tools/build", "--release"}
	if len(argv) != len(want) || argv[0] != want[0] || argv[1] != want[1] {
		t.Errorf("Command(build) = %v, want %v", argv, want)
	}

	argv, err = s.Command(types.VerbDoctor, nil, "/sandbox/svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(argv) != 2 || argv[0] != "/opt/tools/buildopd" || argv[1] != "doctor" {
		t.Errorf("Command(doctor) = %v", argv)
	}
}

func TestCommandContainerMode(t *testing.T) {
	s := New(false, "", "v1.2.3")
	dir := "/sandbox/svc"

	argv, err := s.Command(types.VerbPackage, []string{"./svc"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantPackage := []string{"docker", "run", "--rm", "-v", dir + ":/workspace", "-w", "/workspace", "buildopd/packager:v1.2.3", "./svc"}
	assertArgv(t, argv, wantPackage)

	argv, err = s.Command(types.VerbSign, nil, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantSign := []string{"docker", "run", "--rm", "-v", dir + ":/workspace", "-w", "/workspace", "buildopd/signer:v1.2.3"}
	assertArgv(t, argv, wantSign)

	argv, err = s.Command(types.VerbLint, nil, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantLint := []string{"docker", "run", "--rm", "-v", dir + ":/workspace", "-w", "/workspace", "buildopd/builder:v1.2.3"}
	assertArgv(t, argv, wantLint)
}

func TestCommandContainerModeCustomRuntime(t *testing.T) {
	s := New(false, "", "v1.2.3")
	s.Runtime = "podman"

	argv, err := s.Command(types.VerbBuild, nil, "/sandbox/svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if argv[0] != "podman" {
		t.Errorf("Command runtime = %q, want podman", argv[0])
	}
}

func TestCommandSmokeRequiresArgs(t *testing.T) {
	s := New(true, "/opt/tools", "latest")
	_, err := s.Command(types.VerbSmoke, nil, "/sandbox/svc")
	var opErr *types.OpError
	if !errors.As(err, &opErr) || opErr.Kind != types.ErrValidationFailure {
		t.Fatalf("expected ErrValidationFailure, got %v", err)
	}
}

func TestCommandUnsupportedVerb(t *testing.T) {
	s := New(true, "/opt/tools", "latest")
	_, err := s.Command(types.Verb("deploy"), nil, "/sandbox/svc")
	var opErr *types.OpError
	if !errors.As(err, &opErr) || opErr.Kind != types.ErrUnsupportedVerb {
		t.Fatalf("expected ErrUnsupportedVerb, got %v", err)
	}
}

func assertArgv(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}
