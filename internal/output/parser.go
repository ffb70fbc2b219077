package output

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// Every marker line starts with a bracketed job tag. act sometimes emits the
// emoji with a trailing variation selector, so it is optional.
var (
	runRe       = regexp.MustCompile(`^\s*(\[.+?\])\s*\x{2B50}\x{FE0F}?\s*Run\s*(.*)`)
	successRe   = regexp.MustCompile(`^\s*(\[.+?\])\s*\x{2705}\x{FE0F}?\s*Success\s*-\s*(.*)`)
	failureRe   = regexp.MustCompile(`^\s*(\[.+?\])\s*\x{274C}\x{FE0F}?\s*Failure\s*-\s*(.*)`)
	groupRe     = regexp.MustCompile(`^\s*(\[.+?\])\s*\x{2753}\x{FE0F}?\s*::group::\s*(.*)`)
	endGroupRe  = regexp.MustCompile(`^\s*(\[.+?\])\s*\x{2753}\x{FE0F}?\s*::endgroup::`)
	setOutputRe = regexp.MustCompile(`^\s*(\[.+?\])\s*\x{2699}\x{FE0F}?\s*::set-output::\s*([^=]*)=(.*)`)
	lineRe      = regexp.MustCompile(`^\s*(\[.+?\])\s*\|\s*(.*)`)
)

// jobState is the accumulator for one job tag.
type jobState struct {
	steps   []*StepResult
	byName  map[string]int
	buf     strings.Builder
	outputs map[string]string
	groups  []Group
	inGroup bool
	// finalized tracks which entries in steps reached a success or failure marker.
	finalized map[string]bool
}

func newJobState() *jobState {
	return &jobState{
		byName:    map[string]int{},
		outputs:   map[string]string{},
		finalized: map[string]bool{},
	}
}

func (j *jobState) reset() {
	j.buf.Reset()
	j.outputs = map[string]string{}
	j.groups = nil
	j.inGroup = false
}

func (j *jobState) step(name string) *StepResult {
	if i, ok := j.byName[name]; ok {
		return j.steps[i]
	}
	s := &StepResult{Name: name, Status: StatusPending, Outputs: map[string]string{}}
	j.byName[name] = len(j.steps)
	j.steps = append(j.steps, s)
	return s
}

// Parser reconstructs step results from act output one line at a time.
// A Parser is not safe for concurrent use; each transcript gets its own.
type Parser struct {
	jobs  map[string]*jobState
	order []string
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{jobs: map[string]*jobState{}}
}

// Parse runs a complete transcript through a fresh parser.
func Parse(transcript string) []StepResult {
	p := NewParser()
	for _, line := range strings.Split(transcript, "\n") {
		p.ParseLine(line)
	}
	return p.Results()
}

// ParseReader is Parse for a stream.
func ParseReader(r io.Reader) ([]StepResult, error) {
	p := NewParser()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		p.ParseLine(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p.Results(), nil
}

// ParseLine classifies a single transcript line and updates the state of the
// job it belongs to. Lines for a job tag that has not started a step yet are
// ignored.
func (p *Parser) ParseLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if m := runRe.FindStringSubmatch(line); m != nil {
		job, ok := p.jobs[m[1]]
		if !ok {
			job = newJobState()
			p.jobs[m[1]] = job
			p.order = append(p.order, m[1])
		}
		name := strings.TrimSpace(m[2])
		s := job.step(name)
		*s = StepResult{Name: name, Status: StatusPending, Outputs: map[string]string{}}
		delete(job.finalized, name)
		job.reset()
		return
	}
	if m := successRe.FindStringSubmatch(line); m != nil {
		p.finalize(m[1], strings.TrimSpace(m[2]), StatusSuccess)
		return
	}
	if m := failureRe.FindStringSubmatch(line); m != nil {
		p.finalize(m[1], strings.TrimSpace(m[2]), StatusFailure)
		return
	}
	if m := groupRe.FindStringSubmatch(line); m != nil {
		if job := p.jobs[m[1]]; job != nil {
			job.groups = append(job.groups, Group{Name: m[2]})
			job.inGroup = true
		}
		return
	}
	if m := endGroupRe.FindStringSubmatch(line); m != nil {
		if job := p.jobs[m[1]]; job != nil {
			if n := len(job.groups); n > 0 {
				job.groups[n-1].Output = strings.TrimSpace(job.groups[n-1].Output)
			}
			job.inGroup = false
		}
		return
	}
	if m := setOutputRe.FindStringSubmatch(line); m != nil {
		if job := p.jobs[m[1]]; job != nil {
			job.outputs[strings.TrimSpace(m[2])] = m[3]
		}
		return
	}
	if m := lineRe.FindStringSubmatch(line); m != nil {
		job := p.jobs[m[1]]
		if job == nil {
			return
		}
		if job.inGroup {
			if n := len(job.groups); n > 0 {
				job.groups[n-1].Output += m[2] + "\n"
			}
		}
		job.buf.WriteString(m[2])
		job.buf.WriteByte('\n')
	}
}

func (p *Parser) finalize(tag, name string, status int) {
	job := p.jobs[tag]
	if job == nil {
		return
	}
	s := job.step(name)
	s.Status = status
	s.Output = strings.TrimSpace(job.buf.String())
	s.Outputs = job.outputs
	if len(job.groups) > 0 {
		s.Groups = job.groups
	} else {
		s.Groups = nil
	}
	job.finalized[name] = true
	job.reset()
}

// Results flattens the finalized steps of every job, in the order the job tags
// and their steps first appeared. Steps that never reached a success or
// failure marker are omitted.
func (p *Parser) Results() []StepResult {
	results := []StepResult{}
	for _, tag := range p.order {
		job := p.jobs[tag]
		for _, s := range job.steps {
			if job.finalized[s.Name] {
				results = append(results, *s)
			}
		}
	}
	return results
}
