package main

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/djherbis/atime"
	humanize "github.com/dustin/go-humanize"
	"github.com/matryer/try"
	"github.com/tdewolff/argp"
	"github.com/tdewolff/jsprivacy"
)

// Version is the current jsprivacy version.
var Version = "built from source"

// extensions are the filename extensions that are transformed, others are only synchronized.
var extensions = map[string]bool{
	"js": true, "jsx": true, "cjs": true, "cjsx": true, "mjs": true, "mjsx": true,
	"ts": true, "tsx": true, "cts": true, "ctsx": true, "mts": true, "mtsx": true,
}

var (
	hidden             bool
	matches            []string
	matchesRegexp      []*regexp.Regexp
	filters            []string
	filtersRegexp      []*regexp.Regexp
	recursive          bool
	quiet              bool
	verbose            int
	version            bool
	watch              bool
	sync               bool
	writeMap           bool
	inputMap           bool
	stdinName          string
	preserve           []string
	preserveMode       bool
	preserveOwnership  bool
	preserveTimestamps bool
	preserveLinks      bool
	options            jsprivacy.Options
)

type Matches struct {
	matches *[]string
}

func (scanner Matches) Scan(s []string) (int, error) {
	n := 0
	for _, item := range s {
		if strings.HasPrefix(item, "-") {
			break
		}
		*scanner.matches = append(*scanner.matches, item)
		n++
	}
	return n, nil
}

func (typenamer Matches) TypeName() string {
	return "[]string"
}

// Filters appends path patterns prefixed by + for inclusion and - for exclusion.
type Filters struct {
	filters *[]string
	sign    byte
}

func (scanner Filters) Scan(s []string) (int, error) {
	n := 0
	for _, item := range s {
		if strings.HasPrefix(item, "-") {
			break
		}
		*scanner.filters = append(*scanner.filters, string(scanner.sign)+item)
		n++
	}
	return n, nil
}

func (typenamer Filters) TypeName() string {
	return "[]string"
}

// Task is a transform task.
type Task struct {
	root string
	src  string
	dst  string
	sync bool
}

// NewTask returns a new Task.
func NewTask(root, input, output string, sync bool) (Task, error) {
	if len(output) != 0 && (output == "." || output[len(output)-1] == os.PathSeparator) {
		rel, err := filepath.Rel(root, input)
		if err != nil {
			return Task{}, err
		}
		output = filepath.Join(output, rel)
	}
	return Task{root, input, output, sync}, nil
}

// Loggers.
var (
	Error   *log.Logger
	Warning *log.Logger
	Info    *log.Logger
	Debug   *log.Logger
)

func main() {
	// os.Exit doesn't execute pending defer calls, this is fixed by encapsulating run()
	os.Exit(run())
}

func run() int {
	var inputs []string
	var output string
	var configFile string
	var flags Flags

	defaultPreserve := []string{"mode", "timestamps"}
	if supportsGetOwnership {
		defaultPreserve = []string{"mode", "ownership", "timestamps"}
	}

	f := argp.New("jsprivacy")
	f.AddRest(&inputs, "inputs", "Input files or directories, leave blank to use stdin")
	f.AddOpt(&output, "o", "output", nil, "Output file or directory, leave blank to use stdout")
	f.AddOpt(&stdinName, "", "stdin-filename", "stdin.js", "Filename of stdin, its extension selects the dialect and module kind")
	f.AddOpt(Matches{&matches}, "", "match", nil, "Filename matching pattern, only matching filenames are processed")
	f.AddOpt(Filters{&filters, '+'}, "", "include", nil, "Path inclusion pattern, includes paths previously excluded")
	f.AddOpt(Filters{&filters, '-'}, "", "exclude", nil, "Path exclusion pattern, excludes paths from being processed")
	f.AddOpt(&recursive, "r", "recursive", false, "Recursively transform directories")
	f.AddOpt(&hidden, "a", "all", false, "Transform all files, including hidden files and files in hidden directories")
	f.AddOpt(&quiet, "q", "quiet", false, "Quiet mode to suppress all output")
	f.AddOpt(argp.Count{&verbose}, "v", "verbose", nil, "Verbose mode, set twice for more verbosity and thrice for transform diagnostics")
	f.AddOpt(&watch, "w", "watch", false, "Watch files and transform upon changes")
	f.AddOpt(&sync, "s", "sync", false, "Copy all files to destination directory and transform when filetype matches")
	f.AddOpt(&preserve, "p", "preserve", defaultPreserve, "Preserve options (mode, ownership, timestamps, links, all)")
	f.AddOpt(&version, "", "version", false, "Version")

	f.AddOpt(&configFile, "", "config", nil, "YAML configuration file, flags take precedence")
	f.AddOpt(&flags.Module, "", "module", nil, "Module kind of the output (cjs or esm), inferred by default")
	f.AddOpt(&flags.JSX, "", "jsx", false, "Parse JSX, detected from the filename extension by default")
	f.AddOpt(&flags.TypeScript, "", "typescript", false, "Parse TypeScript, detected from the filename extension by default")
	f.AddOpt(&flags.InlineMap, "", "inline-map", false, "Append the source map as a data URL")
	f.AddOpt(&writeMap, "", "map", false, "Write the source map next to the output file")
	f.AddOpt(&inputMap, "", "input-map", false, "Chain with the source map next to the input file, if present")
	f.AddOpt(&flags.NoEmbed, "", "no-embed", false, "Do not embed the original code in the source map")
	f.AddOpt(&flags.HelperFunc, "", "helper-func", nil, "Name of the function that builds the dictionary")
	f.AddOpt(&flags.HelperCJS, "", "helper-cjs", nil, "Module that exports the helper function to CommonJS")
	f.AddOpt(&flags.HelperESM, "", "helper-esm", nil, "Module that exports the helper function to ES modules")
	f.AddOpt(&flags.HelperCode, "", "helper-code", nil, "Expression that evaluates to the helper function, instead of importing it")
	f.AddOpt(&flags.Dictionary, "", "dictionary", nil, "Preferred name of the dictionary variable")
	f.AddOpt(&flags.Skip, "", "skip", nil, "ECMAScript regular expressions of strings that are never collected")
	f.Parse()

	if version {
		if !quiet {
			fmt.Printf("jsprivacy %s\n", Version)
		}
		return 0
	}

	if len(inputs) == 1 && inputs[0] == "-" {
		inputs = inputs[:0] // stdin
	} else if output == "-" {
		output = "" // stdout
	}
	useStdin := len(inputs) == 0

	Error, Warning, Info, Debug = newLoggers(os.Stderr, quiet, verbose)

	// load configuration, set flags take precedence
	options = jsprivacy.DefaultOptions()
	if configFile != "" {
		config, err := LoadConfig(configFile)
		if err != nil {
			Error.Println(err)
			return 1
		}
		if err := config.Apply(&options); err != nil {
			Error.Println(err)
			return 1
		}
		writeMap = writeMap || config.Map
		inputMap = inputMap || config.InputMap
	}
	if err := flags.Apply(&options, f.IsSet); err != nil {
		Error.Println(err)
		return 1
	}
	if 2 < verbose {
		options.Logger = Debug
	}

	// compile matches and regexps
	var err error
	if 0 < len(matches) {
		matchesRegexp = make([]*regexp.Regexp, len(matches))
		for i, pattern := range matches {
			if matchesRegexp[i], err = compilePattern(pattern); err != nil {
				Error.Println(err)
				return 1
			}
		}
	}
	if 0 < len(filters) {
		filtersRegexp = make([]*regexp.Regexp, len(filters))
		for i, pattern := range filters {
			if filtersRegexp[i], err = compilePattern(pattern[1:]); err != nil {
				Error.Println(err)
				return 1
			}
		}
	}

	if (useStdin || output == "") && (watch || sync || writeMap) {
		if watch {
			Error.Println("--watch doesn't work with stdin and stdout, specify input and output")
		}
		if sync {
			Error.Println("--sync doesn't work with stdin and stdout, specify input and output")
		}
		if writeMap {
			Error.Println("--map doesn't work with stdout, specify output or use --inline-map")
		}
		return 1
	} else if useStdin && recursive {
		Error.Println("--recursive doesn't work with stdin, specify input")
		return 1
	} else if output == "" && recursive {
		Error.Println("--recursive doesn't work with stdout, specify output")
		return 1
	}
	if f.IsSet("preserve") && (useStdin || output == "") {
		Error.Println("--preserve cannot be used together with stdin or stdout")
		return 1
	}
	for _, option := range preserve {
		switch option {
		case "all":
			preserveMode = true
			preserveOwnership = true
			preserveTimestamps = true
			preserveLinks = true
		case "mode":
			preserveMode = true
		case "ownership":
			preserveOwnership = true
		case "timestamps":
			preserveTimestamps = true
		case "links":
			preserveLinks = true
		}
	}
	if preserveOwnership && !supportsGetOwnership {
		Warning.Println(fmt.Errorf("preserve ownership not supported on platform"))
	}

	////////////////

	for i, input := range inputs {
		if input == "-" {
			Error.Println("cannot mix files and stdin as input")
			return 1
		}
		inputs[i] = filepath.Clean(input)
		if input[len(input)-1] == os.PathSeparator {
			inputs[i] += string(os.PathSeparator)
		}
	}

	// set output file or directory, empty means stdout
	dirDst := false
	if output != "" {
		dirDst = IsDir(output)
		if !dirDst {
			if 1 < len(inputs) {
				Error.Printf("stat %v: no such file or directory\n", output)
				return 1
			} else if len(inputs) == 1 {
				if info, err := os.Lstat(inputs[0]); err == nil && info.Mode().IsDir() && info.Mode()&os.ModeSymlink == 0 {
					dirDst = true
				}
			}
		}

		output = filepath.Clean(output)
		if dirDst {
			output += string(os.PathSeparator)
		}
	} else if 1 < len(inputs) {
		Error.Println("must specify an output directory for multiple input files")
		return 1
	}
	if output == "" {
		Info.Println("transform to stdout")
	} else if !dirDst {
		Info.Println("transform to output file", output)
	} else if output == "."+string(os.PathSeparator) {
		Info.Println("transform to current working directory")
	} else {
		Info.Println("transform to output directory", output)
	}

	var tasks []Task
	var roots []string
	if useStdin {
		Info.Println("transform from stdin")
		tasks = append(tasks, Task{src: "", dst: output})
		roots = append(roots, "")
	} else {
		fsys := NewFS()
		tasks, roots, err = createTasks(fsys, inputs, output)
		if err != nil {
			Error.Println(err)
			return 1
		}
	}

	// make output directory
	if dirDst {
		if err := os.MkdirAll(output, 0777); err != nil {
			Error.Println(err)
			return 1
		}
	}

	////////////////

	fails := 0
	start := time.Now()
	if !watch && (len(tasks) == 1 || 0 < verbose) {
		for _, task := range tasks {
			if ok := transform(task); !ok {
				fails++
			}
		}
	} else {
		numWorkers := runtime.NumCPU()
		if 0 < verbose {
			numWorkers = 1
		} else if numWorkers < 4 {
			numWorkers = 4
		}

		chanTasks := make(chan Task, 20)
		chanFails := make(chan int, numWorkers)
		for n := 0; n < numWorkers; n++ {
			go transformWorker(chanTasks, chanFails)
		}

		if !watch {
			for _, task := range tasks {
				chanTasks <- task
			}
		} else {
			watcher, err := NewWatcher(recursive)
			if err != nil {
				Error.Println(err)
				return 1
			}
			defer watcher.Close()
			changes := watcher.Run()

			for _, filename := range inputs {
				if err := watcher.AddPath(filename); err != nil {
					Error.Println(err)
				}
			}

			for _, task := range tasks {
				watcher.IgnoreNext(task.dst)
				chanTasks <- task
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			for changes != nil {
				select {
				case <-c:
					watcher.Close()
				case file, ok := <-changes:
					if !ok {
						changes = nil
						break
					}
					file = filepath.Clean(file)

					// find longest common path among roots
					root := ""
					for _, path := range roots {
						pathRel, err1 := filepath.Rel(path, file)
						rootRel, err2 := filepath.Rel(root, file)
						if err2 != nil || err1 == nil && len(pathRel) < len(rootRel) {
							root = path
						}
					}

					task, err := NewTask(root, file, output, !fileMatches(file))
					if err != nil {
						Error.Println(err)
						return 1
					}
					watcher.IgnoreNext(task.dst) // skip change on output
					chanTasks <- task
				}
			}
		}

		close(chanTasks)
		for n := 0; n < numWorkers; n++ {
			fails += <-chanFails
		}
	}

	if !watch {
		Info.Println("finished in", time.Since(start))
	}
	if 0 < fails {
		return 1
	}
	return 0
}

func transformWorker(chanTasks <-chan Task, chanFails chan<- int) {
	fails := 0
	for task := range chanTasks {
		if ok := transform(task); !ok {
			fails++
		}
	}
	chanFails <- fails
}

// compilePattern compiles a glob pattern, or a regular expression when prefixed by ~.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if len(pattern) == 0 || pattern[0] != '~' {
		if strings.HasPrefix(pattern, `\~`) {
			pattern = pattern[1:]
		}
		pattern = regexp.QuoteMeta(pattern)
		pattern = strings.ReplaceAll(pattern, `\*\*`, `.*`)
		pattern = strings.ReplaceAll(pattern, `\*`, fmt.Sprintf(`[^%c]*`, filepath.Separator))
		pattern = strings.ReplaceAll(pattern, `\?`, fmt.Sprintf(`[^%c]?`, filepath.Separator))
		pattern = "^" + pattern + "$"
	} else {
		pattern = pattern[1:]
	}
	return regexp.Compile(pattern)
}

func fileFilter(filename string) bool {
	if 0 < len(matches) {
		match := false
		base := filepath.Base(filename)
		for _, re := range matchesRegexp {
			if re.MatchString(base) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	match := true
	for i, re := range filtersRegexp {
		if re.MatchString(filename) {
			match = filters[i][0] == '+'
		}
	}
	return match
}

func fileMatches(filename string) bool {
	if !fileFilter(filename) {
		return false
	}
	ext := filepath.Ext(filename)
	if 0 < len(ext) {
		ext = ext[1:]
	}
	return extensions[ext]
}

func createTasks(fsys fs.FS, inputs []string, output string) ([]Task, []string, error) {
	tasks := []Task{}
	roots := []string{}
	for _, input := range inputs {
		root := filepath.Clean(filepath.Dir(input))
		input = filepath.Clean(input)

		var err error
		var info os.FileInfo
		if !preserveLinks {
			// follow and dereference symlinks
			info, err = fs.Stat(fsys, input)
		} else {
			info, err = os.Lstat(input)
		}
		if err != nil {
			return nil, nil, err
		}

		if preserveLinks && info.Mode()&os.ModeSymlink != 0 {
			// copy symlink as is
			if !sync {
				Warning.Println("--sync not specified, omitting symbolic link", input)
				continue
			}
			task, err := NewTask(root, input, output, true)
			if err != nil {
				return nil, nil, err
			}
			tasks = append(tasks, task)
		} else if info.Mode().IsRegular() {
			valid := fileFilter(input) // explicit inputs are transformed whatever their extension
			if valid || sync {
				task, err := NewTask(root, input, output, !valid)
				if err != nil {
					return nil, nil, err
				}
				tasks = append(tasks, task)
			}
		} else if info.Mode().IsDir() {
			if !recursive {
				Warning.Println("--recursive not specified, omitting directory", input)
				continue
			}

			var walkFn func(string, fs.DirEntry, error) error
			walkFn = func(input string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				} else if d.Name() == "." || d.Name() == ".." {
					return nil
				} else if d.Name() == "" || !hidden && d.Name()[0] == '.' {
					if d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}

				if !preserveLinks && d.Type()&os.ModeSymlink != 0 {
					// follow and dereference symlinks
					info, err := fs.Stat(fsys, input)
					if err != nil {
						return err
					}
					if info.IsDir() {
						return fs.WalkDir(fsys, input, walkFn)
					}
					d = fs.FileInfoToDirEntry(info)
				}

				if preserveLinks && d.Type()&os.ModeSymlink != 0 {
					// copy symlink as is
					if !sync {
						Warning.Println("--sync not specified, omitting symbolic link", input)
						return nil
					}
					task, err := NewTask(root, input, output, true)
					if err != nil {
						return err
					}
					tasks = append(tasks, task)
				} else if d.Type().IsRegular() {
					valid := fileMatches(input)
					if valid || sync {
						task, err := NewTask(root, input, output, !valid)
						if err != nil {
							return err
						}
						tasks = append(tasks, task)
					}
				}
				return nil
			}
			if err := fs.WalkDir(fsys, input, walkFn); err != nil {
				return nil, nil, err
			}
			roots = append(roots, root)
		} else {
			return nil, nil, fmt.Errorf("not a file or directory %s", input)
		}
	}
	return tasks, roots, nil
}

// transform runs a single task.
func transform(t Task) bool {
	// synchronizing files that are not transformed but just copied to the same directory, no action needed
	if t.sync {
		if t.src == t.dst {
			return true
		} else if info, err := os.Lstat(t.src); preserveLinks && err == nil && info.Mode()&os.ModeSymlink != 0 {
			src, err := os.Readlink(t.src)
			if err != nil {
				Error.Println(err)
				return false
			}
			if err := createSymlink(src, t.dst); err != nil {
				Error.Println(err)
				return false
			}
			return true
		}
	}

	srcName, filename := t.src, t.src
	if srcName == "" {
		srcName, filename = "stdin", stdinName
	}
	dstName := t.dst
	if dstName == "" {
		dstName = "stdout"
	}

	fr, err := openInputFile(t.src)
	if err != nil {
		Error.Println(err)
		return false
	}
	b, err := io.ReadAll(fr)
	fr.Close()
	if err != nil {
		Error.Println("cannot read "+srcName+":", err)
		return false
	}

	// synchronize file
	if t.sync {
		if err := writeOutputFile(t.src, t.dst, b); err != nil {
			Error.Println(err)
			return false
		}
		preserveAttributes(t.src, t.root, t.dst)
		Info.Println("copy", srcName, "to", dstName)
		return true
	}

	var input *string
	if inputMap && t.src != "" {
		if m, err := os.ReadFile(t.src + ".map"); err == nil {
			s := string(m)
			input = &s
		} else if !os.IsNotExist(err) {
			Warning.Println(err)
		}
	}

	opts := options
	if opts.InlineSourceMap && writeMap {
		opts.InlineSourceMap = false
		Warning.Println("--map takes precedence over --inline-map for", srcName)
	}

	success := true
	startTime := time.Now()
	code := b
	out, err := jsprivacy.Transform(filename, string(b), input, opts)
	if err != nil {
		Error.Println("cannot transform "+srcName+":", err)
		success = false
	} else {
		code = []byte(out.Code)
		if writeMap && out.Map != nil {
			code = append(code, "\n//# sourceMappingURL="...)
			code = append(code, filepath.Base(t.dst)+".map"...)
		}
	}

	if err := writeOutputFile(t.src, t.dst, code); err != nil {
		Error.Println(err)
		return false
	}
	if success && writeMap && out.Map != nil {
		out.Map.File = filepath.Base(t.dst)
		if err := writeOutputFile("", t.dst+".map", out.Map.Bytes()); err != nil {
			Error.Println(err)
			return false
		}
	}

	if !quiet {
		rLen, wLen := len(b), len(code)
		dur := time.Since(startTime)
		speed := "Inf MB"
		if 0 < dur {
			speed = humanize.Bytes(uint64(float64(rLen) / dur.Seconds()))
		}
		ratio := 1.0
		if 0 < rLen {
			ratio = float64(wLen) / float64(rLen)
		}

		stats := fmt.Sprintf("(%9v, %6v, %6v, %5.1f%%, %6v/s)", dur, humanize.Bytes(uint64(rLen)), humanize.Bytes(uint64(wLen)), ratio*100, speed)
		if srcName != dstName {
			fmt.Fprintln(os.Stderr, stats, "-", srcName, "to", dstName)
		} else {
			fmt.Fprintln(os.Stderr, stats, "-", srcName)
		}
	}

	preserveAttributes(t.src, t.root, t.dst)
	return success
}

// writeOutputFile writes b to dst. When dst is the source, the source is renamed first and
// restored if writing fails.
func writeOutputFile(src, dst string, b []byte) error {
	backup := ""
	if src != "" && dst != "" {
		if sameFile, _ := SameFile(src, dst); sameFile {
			backup = src + ".bak"
			err := try.Do(func(attempt int) (bool, error) {
				ferr := os.Rename(dst, backup)
				return attempt < 5, ferr
			})
			if err != nil {
				return err
			}
		}
	}

	fw, err := openOutputFile(dst)
	if err == nil {
		_, err = io.Copy(fw, bytes.NewReader(b))
		if dst != "" {
			if cerr := fw.Close(); err == nil {
				err = cerr
			}
		}
	}

	if backup != "" {
		if err == nil {
			return os.Remove(backup)
		}
		os.Remove(dst)
		if rerr := os.Rename(backup, dst); rerr != nil {
			return rerr
		}
	}
	return err
}

func preserveAttributes(src, root, dst string) {
	if src == "" || dst == "" {
		return
	}

	// make sure we only set attributes on directories and files inside the root destination
	var err error
	src, err = filepath.Rel(root, src)
	if err != nil {
		// should never occur
		Error.Printf("src is not part of root path: src=%s root=%s", src, root)
		return
	}

Next:
	srcInfo, err := os.Stat(filepath.Join(root, src))
	if err != nil {
		Warning.Println(err)
		return
	}

	if preserveMode {
		err = os.Chmod(dst, srcInfo.Mode().Perm())
		if err != nil {
			Warning.Println(err)
		}
	}
	if preserveOwnership {
		if uid, gid, ok := getOwnership(srcInfo); ok {
			err = os.Chown(dst, uid, gid)
			if err != nil {
				Warning.Println(err)
			}
		}
	}
	if preserveTimestamps {
		err = os.Chtimes(dst, atime.Get(srcInfo), srcInfo.ModTime())
		if err != nil {
			Warning.Println(err)
		}
	}

	src = filepath.Dir(src)
	dst = filepath.Dir(dst)
	if src != "." {
		// go up to but excluding the root path
		goto Next
	}
}
