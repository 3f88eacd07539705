package emotion

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	gorgonia "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"mood-mirror-go/config"
	"mood-mirror-go/internal/dataset"
)

// EpochStats enthält die Kennzahlen eines Trainingsdurchlaufs.
type EpochStats struct {
	Epoch       int
	TrainLoss   float64
	ValLoss     float64
	ValAccuracy float64
}

// Report fasst einen Trainingslauf zusammen.
type Report struct {
	Classes []string
	Epochs  []EpochStats
}

// Trainer fittet den Klassifikator auf einem Verzeichnisbaum mit einem
// Unterverzeichnis pro Emotionsklasse und persistiert Gewichte plus
// Label-Tabelle.
type Trainer struct {
	cfg   config.TrainingConfig
	model config.ModelConfig
}

// NewTrainer erstellt eine neue Trainings-Pipeline.
func NewTrainer(cfg config.TrainingConfig, model config.ModelConfig) *Trainer {
	return &Trainer{cfg: cfg, model: model}
}

// Run führt das Training aus: Datensatz einlesen, Graph aufbauen, die
// konfigurierte Anzahl Epochen mit Adam optimieren und nach jeder Epoche
// Validierungsverlust und -genauigkeit berechnen.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	rng := rand.New(rand.NewSource(t.cfg.Seed))

	trainSet, err := dataset.Scan(t.cfg.TrainDir)
	if err != nil {
		return nil, err
	}
	if len(trainSet.Classes()) != NumClasses {
		return nil, fmt.Errorf("trainingsdatensatz hat %d klassen, erwartet %d",
			len(trainSet.Classes()), NumClasses)
	}

	// Ein separater Testbaum dient vollständig als Validierungsmenge;
	// nur ohne Testbaum wird der Validierungsanteil vom Training abgespalten
	var valSet *dataset.Set
	if t.cfg.TestDir != "" {
		valSet, err = dataset.Scan(t.cfg.TestDir)
		if err != nil {
			return nil, err
		}
		if !equalClasses(trainSet.Classes(), valSet.Classes()) {
			return nil, fmt.Errorf("klassen in %s und %s stimmen nicht überein",
				t.cfg.TrainDir, t.cfg.TestDir)
		}
	} else {
		trainSet, valSet = trainSet.Split(t.cfg.ValidationSplit, rng)
	}

	classes := trainSet.Classes()
	bs := t.cfg.BatchSize
	log.Infof("Training: %d Bilder, Validierung: %d Bilder, Stapelgröße %d, %d Epochen",
		trainSet.Len(), valSet.Len(), bs, t.cfg.Epochs)

	// Trainingsgraph mit aktivem Dropout
	g := gorgonia.NewGraph()
	net := newNetwork(g)
	x := gorgonia.NewTensor(g, tensor.Float32, 4,
		gorgonia.WithShape(bs, 1, InputSize, InputSize), gorgonia.WithName("x"))
	y := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(bs, NumClasses), gorgonia.WithName("y"))
	if err := net.fwd(x, bs, t.cfg.Dropout, true); err != nil {
		return nil, fmt.Errorf("konnte trainingsgraph nicht aufbauen: %w", err)
	}

	// Kategorische Kreuzentropie gegen One-Hot-Labels: Summe über die
	// Klassenachse, Mittelwert über den Stapel, damit der Trainingsverlust
	// dieselbe Pro-Beispiel-Skala hat wie der Validierungsverlust. Die
	// Softmax-Ausgabe wird vor dem Logarithmus von null weggeklemmt, sonst
	// erzeugt eine sichere Fehlklassifikation -Inf und NaN-Gradienten
	eps := gorgonia.NewConstant(float32(1e-10), gorgonia.WithName("eps"))
	clamped, err := gorgonia.Add(net.out, eps)
	if err != nil {
		return nil, fmt.Errorf("clamp: %w", err)
	}
	logOut, err := gorgonia.Log(clamped)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	prod, err := gorgonia.HadamardProd(logOut, y)
	if err != nil {
		return nil, fmt.Errorf("kreuzentropie: %w", err)
	}
	perSample, err := gorgonia.Sum(prod, 1)
	if err != nil {
		return nil, fmt.Errorf("klassensumme: %w", err)
	}
	mean, err := gorgonia.Mean(perSample)
	if err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	cost, err := gorgonia.Neg(mean)
	if err != nil {
		return nil, fmt.Errorf("neg: %w", err)
	}

	var costVal gorgonia.Value
	gorgonia.Read(cost, &costVal)

	if _, err := gorgonia.Grad(cost, net.learnables()...); err != nil {
		return nil, fmt.Errorf("konnte gradienten nicht ableiten: %w", err)
	}

	vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(net.learnables()...))
	defer vm.Close()

	// Adam mit Standard-Lernrate
	solver := gorgonia.NewAdamSolver(
		gorgonia.WithBatchSize(float64(bs)),
		gorgonia.WithLearnRate(t.cfg.LearningRate),
	)

	// Evaluationsgraph ohne Dropout; er teilt sich die Gewichtstensoren
	// mit dem Trainingsgraphen, da Adam die Werte in place aktualisiert
	eval, err := newEvaluator(net, bs)
	if err != nil {
		return nil, err
	}
	defer eval.close()

	report := &Report{Classes: classes}
	xBacking := make([]float32, bs*InputSize*InputSize)
	yBacking := make([]float32, bs*NumClasses)

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		trainSet.Shuffle(rng)
		batches := trainSet.Batches(bs)
		if len(batches) == 0 {
			return nil, fmt.Errorf("trainingsdatensatz ist kleiner als eine stapelgröße (%d)", bs)
		}

		bar := progressbar.NewOptions(len(batches),
			progressbar.OptionSetDescription(fmt.Sprintf("Epoche %d/%d", epoch, t.cfg.Epochs)),
			progressbar.OptionShowCount(),
		)

		var epochLoss float64
		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if err := fillBatch(batch, xBacking, yBacking); err != nil {
				return nil, err
			}
			xVal := tensor.New(tensor.Of(tensor.Float32),
				tensor.WithShape(bs, 1, InputSize, InputSize), tensor.WithBacking(xBacking))
			yVal := tensor.New(tensor.Of(tensor.Float32),
				tensor.WithShape(bs, NumClasses), tensor.WithBacking(yBacking))

			if err := gorgonia.Let(x, xVal); err != nil {
				return nil, fmt.Errorf("konnte eingaben nicht binden: %w", err)
			}
			if err := gorgonia.Let(y, yVal); err != nil {
				return nil, fmt.Errorf("konnte labels nicht binden: %w", err)
			}
			if err := vm.RunAll(); err != nil {
				return nil, fmt.Errorf("trainingsschritt fehlgeschlagen: %w", err)
			}
			if err := solver.Step(gorgonia.NodesToValueGrads(net.learnables())); err != nil {
				return nil, fmt.Errorf("optimierungsschritt fehlgeschlagen: %w", err)
			}
			vm.Reset()

			epochLoss += float64(costVal.Data().(float32))
			_ = bar.Add(1)
		}
		_ = bar.Finish()

		stats := EpochStats{
			Epoch:     epoch,
			TrainLoss: epochLoss / float64(len(batches)),
		}
		stats.ValLoss, stats.ValAccuracy, err = eval.run(ctx, valSet, bs)
		if err != nil {
			return nil, err
		}
		report.Epochs = append(report.Epochs, stats)

		log.Infof("Epoche %d/%d: loss=%.4f val_loss=%.4f val_acc=%.4f",
			epoch, t.cfg.Epochs, stats.TrainLoss, stats.ValLoss, stats.ValAccuracy)
	}

	// Gewichte und Label-Tabelle gemeinsam persistieren
	if err := saveWeights(t.model.WeightsPath, net.learnables()); err != nil {
		return nil, err
	}
	if err := SaveMetadata(t.model.MetadataPath, NewMetadata(classes)); err != nil {
		return nil, err
	}
	log.Infof("Modell gespeichert: %s, Metadaten: %s", t.model.WeightsPath, t.model.MetadataPath)

	return report, nil
}

// evaluator führt den Vorwärtspfad ohne Dropout auf der Validierungsmenge aus.
type evaluator struct {
	vm  gorgonia.VM
	net *network
	x   *gorgonia.Node
}

func newEvaluator(trained *network, batchSize int) (*evaluator, error) {
	g := gorgonia.NewGraph()
	net := newNetwork(g)
	x := gorgonia.NewTensor(g, tensor.Float32, 4,
		gorgonia.WithShape(batchSize, 1, InputSize, InputSize), gorgonia.WithName("x"))
	if err := net.fwd(x, batchSize, 0, false); err != nil {
		return nil, fmt.Errorf("konnte evaluationsgraph nicht aufbauen: %w", err)
	}

	// Gewichtstensoren des Trainingsgraphen einbinden
	src := trained.learnables()
	for i, node := range net.learnables() {
		if err := gorgonia.Let(node, src[i].Value()); err != nil {
			return nil, fmt.Errorf("konnte parameter %s nicht teilen: %w", node.Name(), err)
		}
	}

	return &evaluator{vm: gorgonia.NewTapeMachine(g), net: net, x: x}, nil
}

// run berechnet Kreuzentropie und Genauigkeit über die Validierungsmenge.
// Ein unvollständiger Reststapel wird wie beim Training verworfen.
func (e *evaluator) run(ctx context.Context, set *dataset.Set, batchSize int) (loss, accuracy float64, err error) {
	batches := set.Batches(batchSize)
	if len(batches) == 0 {
		log.Warnf("Validierungsmenge ist kleiner als eine Stapelgröße (%d), überspringe Validierung", batchSize)
		return math.NaN(), math.NaN(), nil
	}

	xBacking := make([]float32, batchSize*InputSize*InputSize)
	yBacking := make([]float32, batchSize*NumClasses)
	var totalLoss float64
	var correct, seen int

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		if err := fillBatch(batch, xBacking, yBacking); err != nil {
			return 0, 0, err
		}
		xVal := tensor.New(tensor.Of(tensor.Float32),
			tensor.WithShape(batchSize, 1, InputSize, InputSize), tensor.WithBacking(xBacking))
		if err := gorgonia.Let(e.x, xVal); err != nil {
			return 0, 0, fmt.Errorf("konnte eingaben nicht binden: %w", err)
		}
		if err := e.vm.RunAll(); err != nil {
			return 0, 0, fmt.Errorf("validierung fehlgeschlagen: %w", err)
		}

		out := e.net.out.Value().Data().([]float32)
		for i, ex := range batch {
			row := out[i*NumClasses : (i+1)*NumClasses]
			best := 0
			for j, s := range row {
				if s > row[best] {
					best = j
				}
			}
			if best == ex.Class {
				correct++
			}
			totalLoss += -math.Log(math.Max(float64(row[ex.Class]), 1e-12))
			seen++
		}
		e.vm.Reset()
	}

	return totalLoss / float64(seen), float64(correct) / float64(seen), nil
}

func (e *evaluator) close() {
	_ = e.vm.Close()
}

// fillBatch lädt die Bilder eines Stapels und schreibt Patches sowie
// One-Hot-Labels in die wiederverwendeten Puffer.
func fillBatch(batch []dataset.Example, xBacking, yBacking []float32) error {
	for i := range yBacking {
		yBacking[i] = 0
	}
	for i, ex := range batch {
		patch, err := dataset.LoadPatch(ex.Path)
		if err != nil {
			return err
		}
		copy(xBacking[i*InputSize*InputSize:(i+1)*InputSize*InputSize], patch)
		yBacking[i*NumClasses+ex.Class] = 1
	}
	return nil
}

func equalClasses(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
