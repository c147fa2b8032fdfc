package ocr

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// TesseractCli runs the tesseract binary and reads the text from stdout.
type TesseractCli struct {
	binary      string
	pageSegMode int
}

func NewTesseractCli(binary string, pageSegMode int) *TesseractCli {
	if binary == "" {
		binary = "tesseract"
	}

	return &TesseractCli{
		binary:      binary,
		pageSegMode: pageSegMode,
	}
}

func (t *TesseractCli) Recognize(ctx context.Context, imagePath string, languages []string) (string, error) {
	args := []string{imagePath, "stdout"}
	if len(languages) > 0 {
		args = append(args, "-l", strings.Join(languages, "+"))
	}
	if t.pageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(t.pageSegMode))
	}

	logrus.WithField("command", t.binary).WithField("args", args).Debug("Executing command")
	cmd := exec.CommandContext(ctx, t.binary, args...)
	outputBuffer := &bytes.Buffer{}
	cmd.Stdout = outputBuffer
	errorBuffer := &bytes.Buffer{}
	cmd.Stderr = errorBuffer
	err := cmd.Run()

	if err != nil {
		return "", errors.Join(err, errors.New(errorBuffer.String()))
	}

	return outputBuffer.String(), nil
}
