package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
)

// SchemaURL is the JSON schema of the jobs file format.
const SchemaURL = "https://raw.githubusercontent.com/dbt-labs/dbt-jobs-as-code/main/src/dbt_jobs_as_code/schemas/load_job_schema.json"

// ExportOptions controls ExportYAML.
type ExportOptions struct {
	// IncludeLinkedID writes the remote id as linked_id so that the job
	// can be adopted later with the link command.
	IncludeLinkedID bool
	// Templates replaces fields, addressed by dotted path, with the given
	// value (typically a "{{ var }}" placeholder).
	Templates map[string]string
}

var (
	braceEscaper   = strings.NewReplacer("{", "<[<", "}", ">]>")
	braceUnescaper = strings.NewReplacer("<[<", "{", ">]>", "}")
)

// ExportYAML writes jobs in the format read by the loader. Managed jobs
// are keyed by their identifier, the others by import_N in input order.
func ExportYAML(w io.Writer, jobs []*job.Job, opts ExportOptions) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for i, j := range jobs {
		key := j.Identifier
		if key == "" {
			key = fmt.Sprintf("import_%d", i+1)
		}
		node, err := jobNode(j, opts)
		if err != nil {
			return fmt.Errorf("failed to export job %s: %w", key, err)
		}
		root.Content = append(root.Content, scalar(key), node)
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{scalar("jobs"), root}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "# yaml-language-server: $schema=%s\n\n", SchemaURL); err != nil {
		return err
	}
	_, err := io.WriteString(w, braceUnescaper.Replace(buf.String()))
	return err
}

func jobNode(j *job.Job, opts ExportOptions) (*yaml.Node, error) {
	c := j.Clone()
	if !opts.IncludeLinkedID {
		c.LinkedID = nil
	} else if c.ID != nil {
		id := *c.ID
		c.LinkedID = &id
	}
	c.Schedule.Date = nil
	c.Schedule.Time = nil
	c.State = 0

	node := &yaml.Node{}
	if err := node.Encode(c); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(opts.Templates))
	for p := range opts.Templates {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		setPath(node, strings.Split(p, "."), braceEscaper.Replace(opts.Templates[p]))
	}
	return node, nil
}

// setPath sets the scalar at path, creating intermediate mappings.
func setPath(node *yaml.Node, path []string, value string) {
	for _, part := range path[:len(path)-1] {
		child := lookup(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode}
			node.Content = append(node.Content, scalar(part), child)
		} else if child.Kind != yaml.MappingNode {
			*child = yaml.Node{Kind: yaml.MappingNode}
		}
		node = child
	}
	key := path[len(path)-1]
	if child := lookup(node, key); child != nil {
		*child = *scalar(value)
		return
	}
	node.Content = append(node.Content, scalar(key), scalar(value))
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
