// Command guesser trains a smoothed n-gram model on a password list and
// writes guesses in descending probability order, one per line.
//
//	guesser train.txt guesses.txt 10000000 kneserney 8
//	guesser train.txt guesses.txt 10000000 backoff 5
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	smoothpwd "github.com/loopy-song/smooth-pwd"
	"github.com/pkg/errors"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s train_path output_path guess_num model_name model_arg\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "model_name is backoff or kneserney; model_arg is the Katz pruning threshold or the Kneser-Ney gram size\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if flag.NArg() < 5 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Arg(1), flag.Arg(2), flag.Arg(3), flag.Arg(4)); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(trainPath, outputPath, guessNumStr, modelName, modelArg string) error {
	guessNum, err := strconv.ParseUint(guessNumStr, 10, 64)
	if err != nil {
		return errors.Wrap(err, "")
	}
	model, err := newModel(modelName, modelArg)
	if err != nil {
		return errors.Wrap(err, "")
	}

	start := time.Now()
	n, err := train(model, trainPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("training size: %d time: %v", n, time.Since(start))

	start = time.Now()
	guesses := model.Generate(guessNum, false)
	log.Printf("generated %d guesses, time: %v", len(guesses), time.Since(start))

	f, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, g := range guesses {
		if _, err := w.WriteString(g.Str); err != nil {
			return errors.Wrap(err, "")
		}
		if err := w.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func newModel(name, arg string) (*smoothpwd.Model, error) {
	modelArg, err := strconv.Atoi(arg)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	switch name {
	case "backoff":
		log.Printf("Katz backoff model, threshold: %d", modelArg)
		model, err := smoothpwd.NewKatzBackoff(smoothpwd.MaxGramSize, modelArg)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return model, nil
	case "kneserney":
		log.Printf("modified Kneser-Ney model, gram size: %d", modelArg)
		model, err := smoothpwd.NewModifiedKneserNey(modelArg, smoothpwd.DefaultDiscountParams)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return model, nil
	default:
		return nil, errors.Errorf("unknown model %q", name)
	}
}

// train feeds every line of the file at path to the model and freezes it.
// Trailing carriage returns are stripped; lines containing bytes outside the
// printable alphabet are skipped.
func train(model *smoothpwd.Model, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	defer f.Close()

	n, skipped := 0, 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if !smoothpwd.IsPrintable(line) {
			skipped++
			continue
		}
		model.Add(line, 1)
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if skipped > 0 {
		log.Printf("skipped %d lines outside the printable alphabet", skipped)
	}
	if err := model.Preprocess(); err != nil {
		return 0, errors.Wrap(err, "")
	}
	return n, nil
}
