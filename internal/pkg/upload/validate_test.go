package upload

import (
	"strings"
	"testing"
)

func TestValidateGameBySniff(t *testing.T) {
	htmlHead := []byte("<!DOCTYPE html><html><head><title>Game</title></head>")

	if _, err := ValidateGameBySniff("game.html", htmlHead); err != nil {
		t.Fatalf("expected .html with HTML content to pass, got %v", err)
	}
	if _, err := ValidateGameBySniff("game.htm", htmlHead); err != nil {
		t.Fatalf("expected .htm with HTML content to pass, got %v", err)
	}
	if _, err := ValidateGameBySniff("GAME.HTML", htmlHead); err != nil {
		t.Fatalf("expected uppercase extension to pass, got %v", err)
	}

	// leading comment sniffs as text/plain but the extension is trusted
	commentHead := []byte("<!-- my game -->\n<!DOCTYPE html>")
	if _, err := ValidateGameBySniff("game.html", commentHead); err != nil {
		t.Fatalf("expected comment-prefixed HTML to pass, got %v", err)
	}

	if _, err := ValidateGameBySniff("game.zip", htmlHead); err == nil {
		t.Fatalf("expected wrong extension to be rejected")
	}
	if _, err := ValidateGameBySniff("game.html", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}); err == nil {
		t.Fatalf("expected PNG content to be rejected")
	}
}

func TestValidateGameSize(t *testing.T) {
	if err := ValidateGameSize(1024); err != nil {
		t.Fatalf("expected small file to pass, got %v", err)
	}
	if err := ValidateGameSize(MaxGameFileSize); err != nil {
		t.Fatalf("expected file at the limit to pass, got %v", err)
	}
	if err := ValidateGameSize(MaxGameFileSize + 1); err == nil {
		t.Fatalf("expected file over the limit to be rejected")
	}
	if err := ValidateGameSize(0); err == nil {
		t.Fatalf("expected empty file to be rejected")
	}
	if err := ValidateGameSize(-1); err == nil {
		t.Fatalf("expected negative size to be rejected")
	}
}

func TestValidateGameBySniffErrorMentionsFormats(t *testing.T) {
	_, err := ValidateGameBySniff("game.exe", []byte("MZ"))
	if err == nil || !strings.Contains(err.Error(), ".html") {
		t.Fatalf("expected error naming the supported formats, got %v", err)
	}
}
