package projlock

import "testing"

func TestLockKeyDeterministic(t *testing.T) {
	t.Parallel()

	const projectUUID = "0d6ff77e-41c7-4a59-9f6c-2ec0e06b3f31"
	first := LockKey(projectUUID)
	for i := 0; i < 10; i++ {
		if got := LockKey(projectUUID); got != first {
			t.Fatalf("lock key not stable: %d vs %d", got, first)
		}
	}
}

func TestLockKeyPositive(t *testing.T) {
	t.Parallel()

	uuids := []string{
		"00000000-0000-0000-0000-000000000000",
		"ffffffff-ffff-ffff-ffff-ffffffffffff",
		"0d6ff77e-41c7-4a59-9f6c-2ec0e06b3f31",
		"a-project-identifier",
	}
	for _, u := range uuids {
		if key := LockKey(u); key < 0 {
			t.Fatalf("lock key for %q is negative: %d", u, key)
		}
	}
}

func TestLockKeyDistinguishesProjects(t *testing.T) {
	t.Parallel()

	a := LockKey("0d6ff77e-41c7-4a59-9f6c-2ec0e06b3f31")
	b := LockKey("1a2b3c4d-5e6f-7081-92a3-b4c5d6e7f809")
	if a == b {
		t.Fatalf("distinct projects hashed to the same lock key: %d", a)
	}
}
