package board

// Zobrist hash keys for position hashing.
// Uses PRNG with fixed seed so hashes are identical across runs.
var (
	zobristTower      [2][MaxHeight + 1][NumSquares]uint64 // [Color][Height][Square], height 0 unused
	zobristGuard      [2][NumSquares]uint64
	zobristSideToMove uint64 // XOR when blue to move
)

func init() {
	initZobrist()
}

type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func initZobrist() {
	rng := newPRNG(0x5EED6A7D70E25A1C)

	for c := Red; c <= Blue; c++ {
		for h := 1; h <= MaxHeight; h++ {
			for sq := Square(0); sq < NumSquares; sq++ {
				zobristTower[c][h][sq] = rng.next()
			}
		}
		for sq := Square(0); sq < NumSquares; sq++ {
			zobristGuard[c][sq] = rng.next()
		}
	}

	zobristSideToMove = rng.next()
}

// ComputeHash computes the Zobrist hash from scratch.
func (p *Position) ComputeHash() uint64 {
	var hash uint64
	for c := Red; c <= Blue; c++ {
		towers := p.Towers[c]
		for towers != 0 {
			sq := towers.PopLSB()
			hash ^= zobristTower[c][p.Heights[sq]][sq]
		}
		guards := p.Guards[c]
		for guards != 0 {
			hash ^= zobristGuard[c][guards.PopLSB()]
		}
	}
	if p.SideToMove == Blue {
		hash ^= zobristSideToMove
	}
	return hash
}
