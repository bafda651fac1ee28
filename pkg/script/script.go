// Package script finds and reads the script documents of a project directory.
package script

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/zurustar/scic/pkg/compiler/ast"
)

// Ext is the suffix of script documents, compared case-insensitively.
const Ext = ".sc.yaml"

// Script はスクリプト文書を表す
type Script struct {
	FileName string // ファイル名
	Path     string // Loader の基点からのパス
	Content  []byte // UTF-8 に変換された内容
	Size     int64  // ファイルサイズ
}

// Decode parses the document. A script without a name is named after its file.
func (s *Script) Decode() (*ast.Script, error) {
	doc, err := ast.Decode(s.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.FileName, err)
	}
	if doc.Name == "" {
		doc.Name = BaseName(s.FileName)
	}
	return doc, nil
}

// BaseName strips the document suffix from a file name.
func BaseName(fileName string) string {
	if strings.HasSuffix(strings.ToLower(fileName), Ext) {
		return fileName[:len(fileName)-len(Ext)]
	}
	return strings.TrimSuffix(fileName, path.Ext(fileName))
}

// Loader はスクリプト文書の読み込みを行う
type Loader struct {
	fsys     fs.FS
	basePath string
	// 入力の文字コード。nil なら UTF-8 のまま
	charset encoding.Encoding
}

// NewLoader Loaderを作成
func NewLoader(basePath string) *Loader {
	return &Loader{fsys: os.DirFS(basePath), basePath: basePath}
}

// NewLoaderFS creates a Loader over fsys; basePath is used in messages only.
func NewLoaderFS(fsys fs.FS, basePath string) *Loader {
	return &Loader{fsys: fsys, basePath: basePath}
}

// WithCharset makes the loader convert documents from enc to UTF-8.
func (l *Loader) WithCharset(enc encoding.Encoding) *Loader {
	l.charset = enc
	return l
}

// BasePath returns the directory the loader reads from.
func (l *Loader) BasePath() string { return l.basePath }

// LoadAllScripts すべてのスクリプト文書を読み込む
func (l *Loader) LoadAllScripts() ([]Script, error) {
	files, err := l.findScriptFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find script files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no script files found in %s", l.basePath)
	}

	scripts := make([]Script, 0, len(files))
	for _, p := range files {
		s, err := l.LoadScript(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load script %s: %w", p, err)
		}
		scripts = append(scripts, *s)
	}
	return scripts, nil
}

// findScriptFiles 拡張子を case-insensitive で比較して文書を探す
func (l *Loader) findScriptFiles() ([]string, error) {
	var files []string
	err := fs.WalkDir(l.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(p), Ext) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadScript reads one document relative to the loader's base.
func (l *Loader) LoadScript(p string) (*Script, error) {
	info, err := fs.Stat(l.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if l.charset != nil {
		data, err = convertToUTF8(data, l.charset)
		if err != nil {
			return nil, fmt.Errorf("failed to convert encoding: %w", err)
		}
	}
	return &Script{
		FileName: path.Base(p),
		Path:     p,
		Content:  data,
		Size:     info.Size(),
	}, nil
}

func convertToUTF8(data []byte, enc encoding.Encoding) ([]byte, error) {
	reader := transform.NewReader(strings.NewReader(string(data)), enc.NewDecoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return out, nil
}
