package deck

import "fmt"

// Stage constants below are the recipe values for each particle kind. They
// are fixed, not derived.

func neutron(req Request, prov Card) Deck {
	asa := req.Identity.ASA()
	mat := req.Identity.MAT
	tmp := formatTemperature(*req.Temperature)
	suff := TemperatureSuffix(*req.Temperature)

	blocks := []Block{
		block("moder",
			"1 -21/",
			fmt.Sprintf("'%s'/", asa),
			fmt.Sprintf("20 %s/", mat),
			"0/"),
		block("reconr",
			"-21 -22/",
			fmt.Sprintf("'%s PENDF'/", asa),
			fmt.Sprintf("%s 2/", mat),
			"0.001 0.0 0.01 5.0e-7/",
			"''/",
			"''/",
			"0/"),
		block("broadr",
			"-21 -22 -23/",
			fmt.Sprintf("%s 1/", mat),
			"0.001 2.0e6 0.01 5.0e-7/",
			tmp+"/",
			"0/"),
		// local heat deposition
		block("heatr",
			"-21 -23 -24 40/",
			fmt.Sprintf("%s 7 0 0 1 2/", mat),
			"302 303 304 318 401 443 444/"),
		block("gaspr",
			"-21 -24 -25/"),
		block("purr",
			"-21 -25 -26/",
			fmt.Sprintf("%s 1 1 20 64/", mat),
			tmp+"/",
			"1.0e10/",
			"0/"),
	}
	if !req.Binary {
		blocks = append(blocks, block("moder", "-26 96/"))
	}

	acer := block("acer",
		"-21 -26 0 27 28/",
		fmt.Sprintf("1 1 1 .%s/", suff))
	acer.Cards = append(acer.Cards, prov,
		Card{Text: fmt.Sprintf("%s %s/", mat, tmp)},
		Card{Text: "1 1/"},
		Card{Text: "/"})

	blocks = append(blocks,
		acer,
		// requality check of the ACE table
		block("acer",
			"0 27 33 29 30/",
			fmt.Sprintf("7 1 1 .%s/", suff),
			"''/"),
		block("viewr", "33 34/"),
		block("viewr", "40 35/"),
	)
	return Deck{Blocks: blocks}
}

// neutronCompanion re-runs heatr with gamma transport and extends the purr
// probability tables; both PENDFs are then written out as text.
func neutronCompanion(req Request) Deck {
	mat := req.Identity.MAT
	tmp := formatTemperature(*req.Temperature)
	return Deck{Blocks: []Block{
		block("heatr",
			"-21 -23 -54 60/",
			fmt.Sprintf("%s 7 0 0 0 2/", mat),
			"302 303 304 318 401 443 444/"),
		block("purr",
			"-21 -54 -56/",
			fmt.Sprintf("%s 1 7 20 64/", mat),
			tmp+"/",
			"1.0e10 1.0e5 1.0e4 1.0e3 1.0e2 1.0e1 1/",
			"0/"),
		block("moder", "-26 66/"),
		block("moder", "-56 67/"),
	}}
}

// photoAtomic has no requality check and no plot: acer does not support them
// for this data type.
func photoAtomic(req Request, prov Card) Deck {
	acer := block("acer",
		"20 21 0 29 30/",
		"4 1 1 .00/")
	acer.Cards = append(acer.Cards, prov, Card{Text: fmt.Sprintf(" %s/", req.Identity.MAT)})
	return Deck{Blocks: []Block{acer}}
}

func photoNuclear(req Request, prov Card) Deck {
	mat := req.Identity.MAT
	suff := TemperatureSuffix(*req.Temperature)

	acer := block("acer",
		"-21 -22 0 27 28/",
		fmt.Sprintf("5 0 1 .%s/", suff))
	acer.Cards = append(acer.Cards, prov, Card{Text: fmt.Sprintf("%s/", mat)})

	return Deck{Blocks: []Block{
		block("moder", "20 -21/"),
		block("reconr",
			"-21 -22/",
			"/",
			fmt.Sprintf("%s 1 0/", mat),
			"0.001 0./",
			"/",
			"0/"),
		acer,
		block("acer",
			"0 27 33 29 30/",
			fmt.Sprintf("7 1 1 .%s/", suff),
			"/"),
		block("viewr", "33 34/"),
	}}
}
