package alerts

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Lớp 10A", "lop 10a"},
		{"lop 10a", "lop 10a"},
		{"THPT Trần Đại Nghĩa", "thpt tran dai nghia"},
		{"  Đà Nẵng  ", "da nang"},
		{"10A1", "10a1"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Fold(c.in); got != c.want {
			t.Fatalf("Fold(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFoldEquivalence(t *testing.T) {
	pairs := [][2]string{
		{"Lớp 10A", "LOP 10A"},
		{"Nguyễn Thị Minh Khai", "nguyen thi minh khai"},
		{"Trường THPT Lê Quý Đôn", "truong thpt le quy don"},
	}
	for _, p := range pairs {
		if Fold(p[0]) != Fold(p[1]) {
			t.Fatalf("expected %q and %q to fold equal, got %q vs %q",
				p[0], p[1], Fold(p[0]), Fold(p[1]))
		}
	}
}
