// Command evaluate measures a model's guessing performance against a held-out
// test set. It trains on the training file, reports sample statistics,
// generates guesses with the Monte-Carlo threshold estimator, and writes a
// crack curve of (guesses made, passwords cracked) pairs at exponentially
// thinned plot points.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	smoothpwd "github.com/loopy-song/smooth-pwd"
	"github.com/pkg/errors"
)

var (
	trainPath  = flag.String("train", "data/phpbb_train.txt", "training set, one password per line")
	testPath   = flag.String("test", "data/phpbb_test.txt", "held-out test set")
	resultPath = flag.String("o", "result.txt", "crack curve output")
	guessPath  = flag.String("guesses", "", "if set, also write guesses with probabilities here")
	modelName  = flag.String("model", "kneserney", "model: backoff or kneserney")
	modelArg   = flag.Int("arg", 8, "Katz pruning threshold or Kneser-Ney gram size")
	guessNum   = flag.Uint64("n", 1000000, "number of guesses")
	sampleNum  = flag.Int("samples", 100000, "number of random samples to draw")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run() error {
	model, err := newModel(*modelName, *modelArg)
	if err != nil {
		return errors.Wrap(err, "")
	}

	trainData, err := readLines(*trainPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	start := time.Now()
	if err := model.Train(trainData); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("training size: %d time: %v", len(trainData), time.Since(start))

	for _, probe := range []string{"password", "password123456", "loopy-song@github.io"} {
		log.Printf("prob(%q) = %g", probe, model.Prob(probe))
	}

	start = time.Now()
	var sampleAvr float64
	for i := 0; i < *sampleNum; i++ {
		_, p := model.Sample()
		sampleAvr += p
	}
	sampleAvr /= float64(*sampleNum)
	log.Printf("tested %d samples, avr: %g time: %v", *sampleNum, sampleAvr, time.Since(start))

	start = time.Now()
	guesses := model.GenerateByMonteCarlo(*guessNum, 10000)
	log.Printf("generated %d guesses, time: %v", len(guesses), time.Since(start))

	if err := sweep(guesses); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// sweep runs the guesses against the test set in descending probability
// order and writes the crack curve.
func sweep(guesses []smoothpwd.StrProb) error {
	testData, err := readLines(*testPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	crack := make(map[string]uint64, len(testData))
	for _, s := range testData {
		crack[s]++
	}
	testSize := uint64(len(testData))

	fout, err := os.Create(*resultPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer fout.Close()
	w := bufio.NewWriter(fout)

	var fguess *bufio.Writer
	if *guessPath != "" {
		gf, err := os.Create(*guessPath)
		if err != nil {
			return errors.Wrap(err, "")
		}
		defer gf.Close()
		fguess = bufio.NewWriter(gf)
	}

	var guessedNum, crackedNum uint64
	for _, g := range guesses {
		if fguess != nil {
			fmt.Fprintf(fguess, "%s %g\n", g.Str, g.Prob)
		}
		if cnt, ok := crack[g.Str]; ok {
			crackedNum += cnt
			delete(crack, g.Str)
		}
		guessedNum++

		if takePlot(guessedNum) {
			fmt.Fprintf(w, "%d %d\n", guessedNum, crackedNum)
		}
		if guessedNum%500000 == 0 {
			log.Printf("%d %d", guessedNum, crackedNum)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "")
	}
	if fguess != nil {
		if err := fguess.Flush(); err != nil {
			return errors.Wrap(err, "")
		}
	}

	log.Printf("guesses: %d cracked: %d test_size: %d fraction: %f",
		guessedNum, crackedNum, testSize, float64(crackedNum)/float64(testSize))
	return nil
}

// takePlot thins plot points exponentially: powers-of-two spacing that grows
// with the guess index, plus every 10000th guess.
func takePlot(x uint64) bool {
	disc := x >> 8
	tar := uint64(1)
	for disc > 0 {
		disc >>= 1
		tar <<= 1
	}
	return x&(tar-1) == 0 || x%10000 == 0
}

func newModel(name string, arg int) (*smoothpwd.Model, error) {
	switch name {
	case "backoff":
		model, err := smoothpwd.NewKatzBackoff(smoothpwd.MaxGramSize, arg)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return model, nil
	case "kneserney":
		model, err := smoothpwd.NewModifiedKneserNey(arg, smoothpwd.DefaultDiscountParams)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return model, nil
	default:
		return nil, errors.Errorf("unknown model %q", name)
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()

	data := make([]string, 0, 1024)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if !smoothpwd.IsPrintable(line) {
			continue
		}
		data = append(data, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return data, nil
}
