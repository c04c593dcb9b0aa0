package inference

import "testing"

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantMime string
		wantData string
		wantErr  bool
	}{
		{"png data url", "data:image/png;base64,aGVsbG8=", "image/png", "hello", false},
		{"jpeg data url", "data:image/JPEG;base64,aGVsbG8=", "image/jpeg", "hello", false},
		{"bare base64", "aGVsbG8=", "image/png", "hello", false},
		{"unpadded base64", "aGVsbG8", "image/png", "hello", false},
		{"not base64 encoded", "data:text/plain,hello", "", "", true},
		{"missing comma", "data:image/png;base64", "", "", true},
		{"garbage", "data:image/png;base64,!!!", "", "", true},
		{"empty", "  ", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, data, err := ParseDataURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got mime=%s", mime)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mime != tt.wantMime {
				t.Errorf("mime = %s, want %s", mime, tt.wantMime)
			}
			if string(data) != tt.wantData {
				t.Errorf("data = %q, want %q", data, tt.wantData)
			}
		})
	}
}

func TestImageFormat(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": "jpeg",
		"image/jpg":  "jpeg",
		"image/gif":  "gif",
		"image/webp": "webp",
		"image/png":  "png",
		"image/heic": "png",
	}
	for mime, want := range cases {
		if got := ImageFormat(mime); got != want {
			t.Errorf("ImageFormat(%s) = %s, want %s", mime, got, want)
		}
	}
}
