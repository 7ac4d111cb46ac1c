package bulk_downloader

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"text/template"
)

const DefaultTargetFileTemplate = "{{.Post.Subreddit}}/{{.Post.ID}}{{.Suffix}}{{.Ext}}"

var ErrInvalidTargetPath = errors.New("invalid target path")

type DownloadConfig interface {
	GetTargetPath(args *TargetFileTemplateArgs) (string, error)
}

type downloadConfig struct {
	TargetFileTemplate *template.Template
}

func NewDownloadConfig() DownloadConfig {
	return &downloadConfig{
		TargetFileTemplate: template.Must(newTargetFileTemplate(DefaultTargetFileTemplate)),
	}
}

// NewDownloadConfigTemplate parses a custom file naming scheme. Besides the TargetFileTemplateArgs fields and
// methods, templates can use the "clean" function to make any value safe as a single path component.
func NewDownloadConfigTemplate(text string) (DownloadConfig, error) {
	tmpl, err := newTargetFileTemplate(text)
	if err != nil {
		return nil, fmt.Errorf("invalid file template: %w", err)
	}
	return &downloadConfig{TargetFileTemplate: tmpl}, nil
}

func newTargetFileTemplate(text string) (*template.Template, error) {
	return template.New("target_file").Funcs(template.FuncMap{"clean": cleanComponent}).Parse(text)
}

// GetTargetPath renders the file template to a slash-separated path, relative to the download target.
func (c *downloadConfig) GetTargetPath(args *TargetFileTemplateArgs) (string, error) {
	builder := strings.Builder{}
	if err := c.TargetFileTemplate.Execute(&builder, args); err != nil {
		return "", err
	}
	targetPath := path.Clean(builder.String())
	if targetPath == "." || path.IsAbs(targetPath) || targetPath == ".." || strings.HasPrefix(targetPath, "../") {
		return "", fmt.Errorf("%w: %#v", ErrInvalidTargetPath, builder.String())
	}
	return targetPath, nil
}

type TargetFileTemplateArgs struct {
	ProviderName string
	Post         *Post
	Resource     *Resource
	// Index is 1-based position of Resource among the Count resources found for Post.
	Index int
	Count int
}

// Suffix is "_N" when the post has more than one resource, otherwise "".
func (a *TargetFileTemplateArgs) Suffix() string {
	if a.Count > 1 {
		return fmt.Sprintf("_%d", a.Index)
	}
	return ""
}

func (a *TargetFileTemplateArgs) Ext() string {
	if a.Resource == nil {
		return ""
	}
	return a.Resource.Extension()
}

var componentReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "", "\n", " ", "\r", " ")

func cleanComponent(s string) string {
	s = strings.TrimSpace(componentReplacer.Replace(s))
	if strings.Trim(s, ".") == "" {
		return "_"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
